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
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var constraintClear bool

// setConstraintCmd represents the set-constraint command
var setConstraintCmd = &cobra.Command{
	Use:   "set-constraint [field value]",
	Short: "Set a parameter floor for the configured cell.",
	Long: `Set-constraint stores a lower bound for one parameter of the configured
cell. Every later run clamps its drafts to the stored floors. Floors only
rise: a value below the stored floor is ignored.

	Example:
		- capsynth set-constraint spacing 0.14
		- capsynth set-constraint         : list the stored floors
		- capsynth set-constraint --clear : drop every floor
	`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("set-constraint takes a field and a value")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore()
		if err != nil {
			fmt.Printf("failed to open store: %s\n", err)
			return
		}
		defer st.Close()

		cell := conf.Cell.Name
		if constraintClear {
			if err := st.ClearConstraints(cell); err != nil {
				fmt.Printf("failed to clear constraints: %s\n", err)
			}
			return
		}

		if len(args) == 2 {
			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				fmt.Println("failed to parse value")
				return
			}
			if err := st.SetConstraint(cell, args[0], v); err != nil {
				fmt.Printf("failed to set constraint: %s\n", err)
				return
			}
		}

		c, err := st.Constraints(cell)
		if err != nil {
			fmt.Printf("failed to read constraints: %s\n", err)
			return
		}
		fields := make([]string, 0, len(c))
		for field := range c {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "FIELD\tFLOOR (%s)\n", cell)
		for _, field := range fields {
			fmt.Fprintf(w, "%s\t%g\n", field, c[field])
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(setConstraintCmd)

	setConstraintCmd.Flags().BoolVar(&constraintClear, "clear", false, "drop every floor of the cell")
}
