/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/config"
	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/verify"
)

var backendProbe bool

// backendCmd represents the backend command
var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Show the configured verification backend.",
	Long: `Backend reports which verification backend the configuration selects.
For an installed tool it finds the newest version below the install root.
With --probe it also checks a small default cell through the backend.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		b := conf.Backend
		fmt.Printf("backend: %s\n", b.Kind)

		switch b.Kind {
		case config.BackendExec:
			ti, err := lib.FindTool(b.Root, b.Binary, b.MinVersion)
			if err != nil {
				fmt.Printf("failed to find tool: %s\n", err)
				return
			}
			fmt.Printf("version: %s\n", ti.Version)
			fmt.Printf("bin path: %s\n", ti.GetBinPath())
		case config.BackendRemote:
			fmt.Printf("url: %s\n", b.URL)
		}

		if !backendProbe {
			return
		}

		gw, err := newGateway()
		if err != nil {
			fmt.Printf("failed to set up backend: %s\n", err)
			return
		}

		p := geom.ParameterSet{Count: 4, Length: 2, Width: 0.2, Spacing: 0.2, FrameWidth: 0.4, Layers: []string{"M1"}}
		g, err := geom.Synthesize(p, conf.Process, geom.InterleavedFinger, false)
		if err != nil {
			fmt.Printf("failed to draw probe cell: %s\n", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		report, err := gw.CheckRules(ctx, verify.Layout{
			Name:       "probe",
			Layers:     g.Layers,
			Primitives: draw.Emit(g),
		})
		if err != nil {
			fmt.Printf("failed to check probe cell: %s\n", err)
			return
		}
		fmt.Printf("probe: pass=%v violations=%d\n", report.Pass, len(report.Violations))
	},
}

func init() {
	rootCmd.AddCommand(backendCmd)

	backendCmd.Flags().BoolVar(&backendProbe, "probe", false, "check a small cell through the backend")
}
