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

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"

	"github.com/xoviat/capsynth/lib/store"
)

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Browse stored runs interactively.",
	Long: `Shell opens a prompt over the run database.

		runs             : runs of every cell
		rounds <run-id>  : rounds of a run
		arrays <run-id>  : arrays assembled for a run
		search <query>   : search rule and parasitic reports
		show <hit-id>    : print the reports behind a search hit
		exit             : leave the shell`,
	Args: cobra.NoArgs,
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

		sh := &shell{st: st}
		for {
			line := strings.TrimSpace(prompt.Input("capsynth> ", sh.complete))
			if line == "exit" || line == "quit" {
				return
			}
			if line != "" {
				sh.exec(line)
			}
		}
	},
}

type shell struct {
	st *store.Store

	// ids completes run and hit ids.
	ids []prompt.Suggest
}

var shellCommands = []prompt.Suggest{
	{Text: "runs", Description: "list runs"},
	{Text: "rounds", Description: "list the rounds of a run"},
	{Text: "arrays", Description: "list the arrays of a run"},
	{Text: "search", Description: "search reports"},
	{Text: "show", Description: "print a search hit"},
	{Text: "exit", Description: "leave the shell"},
}

func (sh *shell) complete(d prompt.Document) []prompt.Suggest {
	if !strings.Contains(d.TextBeforeCursor(), " ") {
		return prompt.FilterHasPrefix(shellCommands, d.GetWordBeforeCursor(), true)
	}
	return prompt.FilterHasPrefix(sh.ids, d.GetWordBeforeCursor(), true)
}

func (sh *shell) exec(line string) {
	fields := strings.Fields(line)
	verb, rest := fields[0], fields[1:]

	switch verb {
	case "runs":
		runs, err := sh.st.Runs("")
		if err != nil {
			fmt.Printf("failed to list runs: %s\n", err)
			return
		}
		sh.ids = sh.ids[:0]
		for _, r := range runs {
			sh.ids = append(sh.ids, prompt.Suggest{Text: r.ID, Description: r.Cell})
		}
		printRunRecords(runs)
	case "rounds", "arrays":
		if len(rest) != 1 {
			fmt.Printf("%s takes a run id\n", verb)
			return
		}
		if verb == "rounds" {
			rounds, err := sh.st.Rounds(rest[0])
			if err != nil {
				fmt.Printf("failed to list rounds: %s\n", err)
				return
			}
			printRoundRecords(rounds)
			return
		}
		arrays, err := sh.st.Arrays(rest[0])
		if err != nil {
			fmt.Printf("failed to list arrays: %s\n", err)
			return
		}
		printArrayRecords(arrays)
	case "search":
		hits, err := sh.st.Search(strings.Join(rest, " "), 20)
		if err != nil {
			fmt.Printf("failed to search: %s\n", err)
			return
		}
		sh.ids = sh.ids[:0]
		for _, h := range hits {
			sh.ids = append(sh.ids, prompt.Suggest{Text: h.ID, Description: h.Kind})
		}
		printHits(hits)
	case "show":
		if len(rest) != 1 {
			fmt.Println("show takes a hit id")
			return
		}
		doc, err := sh.st.Document(rest[0])
		if err != nil {
			fmt.Printf("failed to read %s: %s\n", rest[0], err)
			return
		}
		switch rec := doc.(type) {
		case *store.RoundRecord:
			fmt.Printf("round %d (%s, %s)\n", rec.Index, rec.Phase, rec.Outcome)
			fmt.Print(rec.Rules)
			fmt.Print(rec.Parasitics)
		case *store.ArrayRecord:
			fmt.Printf("array %s: pass=%v fixes=%d removed=%d\n", rec.Spec.Name, rec.Pass, rec.Fixes, rec.Removed)
			fmt.Print(rec.Report)
		}
	default:
		fmt.Printf("unknown command %q\n", verb)
	}
}

func printArrayRecords(arrays []*store.ArrayRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ARRAY\tGRID\tPITCH\tREGIONS\tSEGMENTS\tREMOVED\tPASS")
	for _, a := range arrays {
		fmt.Fprintf(w, "%s\t%dx%d\t%.4g x %.4g\t%d\t%d\t%d\t%v\n",
			a.Spec.Name, a.Spec.Rows, a.Spec.Cols, a.PitchX, a.PitchY, len(a.Regions), a.Segments, a.Removed, a.Pass)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
