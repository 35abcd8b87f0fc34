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
	"go.uber.org/zap"

	"github.com/xoviat/capsynth/lib/array"
	"github.com/xoviat/capsynth/lib/flow"
)

var synthOut string

// synthCmd represents the synth command
var synthCmd = &cobra.Command{
	Use:   "synth [array spec...]",
	Short: "Design the unit cell and assemble arrays from it.",
	Long: `Synth runs the complete flow for the configured cell: the optimizer
tunes the unit cell, the dummy cell is derived and checked, and every
array spec given is assembled from the pair. Specs are YAML files or XLSX
workbooks and are assembled concurrently.

	Example:
		- capsynth synth                     : design the unit cell only
		- capsynth synth dac.yaml ref.xlsx   : design and assemble two arrays
		- capsynth synth -o out dac.yaml     : also write the outputs to out/
	`,
	Run: func(cmd *cobra.Command, args []string) {
		specs := []*array.Spec{}
		for _, path := range args {
			spec, err := loadSpec(path)
			if err != nil {
				fmt.Printf("failed to load array spec: %s\n", err)
				return
			}
			specs = append(specs, spec)
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

		run, err := f.Design(ctx, specs...)
		if serr := st.SaveRun(run, err); serr != nil {
			logger.Error("failed to save run", zap.String("run", run.ID), zap.Error(serr))
		}
		printRun(run)
		if err != nil {
			fmt.Printf("failed to synthesize: %s\n", err)
			return
		}

		if synthOut != "" {
			rec, err := st.Run(run.ID)
			if err != nil {
				fmt.Printf("failed to read run: %s\n", err)
				return
			}
			files, err := writeOutputs(st, synthOut, rec)
			if err != nil {
				fmt.Printf("failed to write outputs: %s\n", err)
				return
			}
			for _, file := range files {
				fmt.Println("wrote " + file)
			}
		}
	},
}

func printRun(run *flow.Run) {
	fmt.Printf("run %s: %s (%s), target %g fF\n", run.ID, run.Cell, run.Variant, run.Target)
	for i, a := range run.Attempts {
		if a.Result == nil {
			continue
		}
		if i > 0 {
			fmt.Printf("restart %d with constraints %v\n", i, a.Constraints)
		}
		printRounds(a.Result.Rounds)
	}

	if run.Result != nil {
		if best := run.Result.BestRound(); best != nil {
			fmt.Printf("best round %d: %.5f fF (%.3f%%), %s\n", best.Index, best.Measured, best.ErrorPercent, run.Result.Reason)
		}
	}
	for _, l := range run.Arrays {
		status := "FAIL"
		if l.Report != nil && l.Report.Pass {
			status = "PASS"
		}
		fmt.Printf("array %s: %dx%d, %d regions, %d segments (%d removed), %s\n",
			l.Spec.Name, l.Spec.Rows, l.Spec.Cols, len(l.Regions), len(l.Segments), len(l.Removed), status)
	}
}

func init() {
	rootCmd.AddCommand(synthCmd)

	synthCmd.Flags().StringVarP(&synthOut, "out", "o", "", "directory to write outputs to")
}
