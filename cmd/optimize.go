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
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/optim"
)

var (
	optimizeTarget  float64
	optimizeVariant string
)

// optimizeCmd represents the optimize command
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Tune the unit cell to the target capacitance.",
	Long: `Optimize runs the round loop for the configured cell and derives its
dummy, without assembling an array. The run is stored and can be
assembled later with the assemble command.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if optimizeTarget > 0 {
			conf.Cell.Target = optimizeTarget
		}
		if optimizeVariant != "" {
			v, err := geom.ParseVariant(optimizeVariant)
			if err != nil {
				fmt.Printf("failed to parse variant: %s\n", err)
				return
			}
			conf.Cell.Variant = v
		}
		if err := conf.Validate(); err != nil {
			fmt.Printf("failed to validate config: %s\n", err)
			return
		}

		st, err := openStore()
		if err != nil {
			fmt.Printf("failed to open store: %s\n", err)
			return
		}
		defer st.Close()

		f, err := newFlow(st)
		if err != nil {
			fmt.Printf("failed to set up flow: %s\n", err)
			return
		}

		ctx, cancel := interruptible()
		defer cancel()

		run, err := f.Cell(ctx)
		if serr := st.SaveRun(run, err); serr != nil {
			logger.Error("failed to save run", zap.String("run", run.ID), zap.Error(serr))
		}
		printRun(run)
		if err != nil {
			fmt.Printf("failed to optimize: %s\n", err)
		}
	},
}

func printRounds(rounds []optim.Round) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROUND\tPHASE\tOUTCOME\tCOUNT\tLENGTH\tWIDTH\tSPACING\tLAYERS\tMEASURED\tERROR %\tFIXES")
	for _, r := range rounds {
		measured, errPct := "-", "-"
		if r.HasMeasurement {
			measured = fmt.Sprintf("%.5f", r.Measured)
			errPct = fmt.Sprintf("%.3f", r.ErrorPercent)
		}
		p := r.Params
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%g\t%g\t%g\t%s\t%s\t%s\t%d\n",
			r.Index, r.Phase, r.Outcome, p.Count, p.Length, p.Width, p.Spacing,
			strings.Join(p.Layers, ","), measured, errPct, r.RuleFixes)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().Float64VarP(&optimizeTarget, "target", "t", 0, "target capacitance in fF (default from config)")
	optimizeCmd.Flags().StringVar(&optimizeVariant, "variant", "", "cell variant (default from config)")
}
