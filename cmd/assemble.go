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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xoviat/capsynth/lib/array"
	"github.com/xoviat/capsynth/lib/flow"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/store"
)

var assembleRun string

// assembleCmd represents the assemble command
var assembleCmd = &cobra.Command{
	Use:   "assemble <array spec>",
	Short: "Assemble an array from a stored unit cell.",
	Long: `Assemble rebuilds the unit and dummy cells of a stored run from their
parameters and assembles the array spec from them. The latest run of the
configured cell is used unless --run is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := loadSpec(args[0])
		if err != nil {
			fmt.Printf("failed to load array spec: %s\n", err)
			return
		}

		st, err := openStore()
		if err != nil {
			fmt.Printf("failed to open store: %s\n", err)
			return
		}
		defer st.Close()

		rec, err := findRun(st, assembleRun)
		if err != nil {
			fmt.Printf("failed to find run: %s\n", err)
			return
		}

		unit, dummy, err := cells(rec)
		if err != nil {
			fmt.Printf("failed to rebuild cells: %s\n", err)
			return
		}

		gw, err := newGateway()
		if err != nil {
			fmt.Printf("failed to set up backend: %s\n", err)
			return
		}

		ctx, cancel := interruptible()
		defer cancel()

		l, err := array.NewAssembler(gw, conf, logger).Assemble(ctx, spec, unit, dummy)
		if l != nil {
			if serr := st.SaveArray(rec.ID, l); serr != nil {
				fmt.Printf("failed to save array: %s\n", serr)
			}
			run := &flow.Run{ID: rec.ID, Cell: rec.Cell, Target: rec.Target, Arrays: []*array.Layout{l}}
			run.Variant, _ = geom.ParseVariant(rec.Variant)
			printRun(run)
		}
		if err != nil {
			fmt.Printf("failed to assemble: %s\n", err)
		}
	},
}

// findRun returns run id, or the latest run of the configured cell.
func findRun(st *store.Store, id string) (*store.RunRecord, error) {
	if id != "" {
		return st.Run(id)
	}
	return st.Latest(conf.Cell.Name)
}

func cells(rec *store.RunRecord) (*geom.Geometry, *geom.Geometry, error) {
	v, err := geom.ParseVariant(rec.Variant)
	if err != nil {
		return nil, nil, err
	}
	if rec.Params.Layers == nil {
		return nil, nil, fmt.Errorf("run %s has no measured unit cell", rec.ID)
	}
	return flow.Cells(conf, v, rec.Params)
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().StringVarP(&assembleRun, "run", "r", "", "run to take the unit cell from")
}
