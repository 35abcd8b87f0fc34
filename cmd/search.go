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

	"github.com/xoviat/capsynth/lib/store"
)

var searchLimit int

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored rule and parasitic reports.",
	Long: `Search runs a query string over every indexed round and array report.

	Example:
		- capsynth search min_spacing
		- capsynth search "kind:array cell:cap10"
		- capsynth search "outcome:rule_failure +text:M2"
	`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore()
		if err != nil {
			fmt.Printf("failed to open store: %s\n", err)
			return
		}
		defer st.Close()

		if _, err := st.Reindex(); err != nil {
			fmt.Printf("failed to update index: %s\n", err)
			return
		}

		hits, err := st.Search(strings.Join(args, " "), searchLimit)
		if err != nil {
			fmt.Printf("failed to search: %s\n", err)
			return
		}
		if len(hits) == 0 {
			fmt.Println("no matches")
			return
		}
		printHits(hits)
	},
}

func printHits(hits []store.Hit) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tKIND\tCELL\tID")
	for _, h := range hits {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", h.Score, h.Kind, h.Cell, h.ID)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of matches")
}
