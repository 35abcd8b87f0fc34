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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xoviat/capsynth/lib/sheet"
	"github.com/xoviat/capsynth/lib/store"
)

var (
	historyAll  bool
	historyXLSX string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List stored runs or the rounds of one run.",
	Long: `History lists the runs of the configured cell, oldest first, or every
round of a single run.

	Example:
		- capsynth history                   : runs of the configured cell
		- capsynth history <run-id>          : rounds of a run
		- capsynth history --xlsx runs.xlsx  : export runs and rounds
	`,
	Args: cobra.RangeArgs(0, 1),
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore()
		if err != nil {
			fmt.Printf("failed to open store: %s\n", err)
			return
		}
		defer st.Close()

		var runs []*store.RunRecord
		if len(args) == 1 {
			rec, err := st.Run(args[0])
			if err != nil {
				fmt.Printf("failed to find run: %s\n", err)
				return
			}
			runs = []*store.RunRecord{rec}
		} else {
			cell := conf.Cell.Name
			if historyAll {
				cell = ""
			}
			if runs, err = st.Runs(cell); err != nil {
				fmt.Printf("failed to list runs: %s\n", err)
				return
			}
		}

		rounds := map[string][]*store.RoundRecord{}
		for _, rec := range runs {
			if rounds[rec.ID], err = st.Rounds(rec.ID); err != nil {
				fmt.Printf("failed to list rounds: %s\n", err)
				return
			}
		}

		if historyXLSX != "" {
			fp, err := os.Create(historyXLSX)
			if err != nil {
				fmt.Printf("failed to open file: %s\n", err)
				return
			}
			defer fp.Close()
			if err := sheet.WriteHistory(fp, runs, rounds); err != nil {
				fmt.Printf("failed to write history: %s\n", err)
				return
			}
		}

		if len(args) == 1 {
			printRoundRecords(rounds[args[0]])
			return
		}
		printRunRecords(runs)
	},
}

func printRunRecords(runs []*store.RunRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCELL\tVARIANT\tSTARTED\tTARGET\tMEASURED\tERROR %\tREASON\tARRAYS")
	for _, r := range runs {
		measured, pct := "-", "-"
		if r.Params.Layers != nil {
			measured = fmt.Sprintf("%.4g", r.Measured)
			pct = fmt.Sprintf("%.2f", r.ErrorPercent)
		}
		reason := r.Reason
		if r.Err != "" {
			reason = r.Err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%s\t%s\t%s\t%d\n",
			r.ID, r.Cell, r.Variant, r.Started.Format("2006-01-02 15:04"), r.Target, measured, pct, reason, len(r.Arrays))
	}
	w.Flush()
}

func printRoundRecords(rounds []*store.RoundRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ATTEMPT\tROUND\tPHASE\tOUTCOME\tMEASURED\tERROR %\tFIXES")
	for _, r := range rounds {
		measured, pct := "-", "-"
		if r.HasMeasurement {
			measured = fmt.Sprintf("%.4g", r.Measured)
			pct = fmt.Sprintf("%.2f", r.ErrorPercent)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%d\n", r.Attempt, r.Index, r.Phase, r.Outcome, measured, pct, r.RuleFixes)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().BoolVarP(&historyAll, "all", "a", false, "list runs of every cell")
	historyCmd.Flags().StringVar(&historyXLSX, "xlsx", "", "also write the listed runs to a workbook")
}
