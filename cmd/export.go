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
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/sheet"
	"github.com/xoviat/capsynth/lib/store"
)

var exportRun string

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Export the outputs of a run.",
	Long: `Export writes the outputs of a stored run into a directory:

		- unit.json          : the resolved unit cell geometry
		- unit.deck.json     : the unit cell primitives
		- dummy.deck.json    : the dummy cell primitives
		- history.xlsx       : every round of the run
		- <array>.yaml       : each array spec
		- <array>.csv        : each array placement list

	The latest run of the configured cell is used unless --run is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore()
		if err != nil {
			fmt.Printf("failed to open store: %s\n", err)
			return
		}
		defer st.Close()

		rec, err := findRun(st, exportRun)
		if err != nil {
			fmt.Printf("failed to find run: %s\n", err)
			return
		}

		files, err := writeOutputs(st, args[0], rec)
		if err != nil {
			fmt.Printf("failed to export run: %s\n", err)
			return
		}
		for _, file := range files {
			fmt.Println("wrote " + file)
		}
	},
}

func writeFile(path string, write func(w io.Writer) error) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fp); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

// writeOutputs writes the outputs of rec into dir and returns the paths
// written.
func writeOutputs(st *store.Store, dir string, rec *store.RunRecord) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	rounds, err := st.Rounds(rec.ID)
	if err != nil {
		return nil, err
	}
	arrays, err := st.Arrays(rec.ID)
	if err != nil {
		return nil, err
	}

	outputs := map[string]func(w io.Writer) error{
		"history.xlsx": func(w io.Writer) error {
			return sheet.WriteHistory(w, []*store.RunRecord{rec}, map[string][]*store.RoundRecord{rec.ID: rounds})
		},
	}
	order := []string{"history.xlsx"}

	if unit, dummy, err := cells(rec); err == nil {
		outputs["unit.json"] = func(w io.Writer) error {
			return draw.Encode(w, unit)
		}
		outputs["unit.deck.json"] = func(w io.Writer) error {
			return draw.Encode(w, draw.Deck{Name: rec.Cell, Layers: unit.Layers, Primitives: draw.Emit(unit)})
		}
		outputs["dummy.deck.json"] = func(w io.Writer) error {
			return draw.Encode(w, draw.Deck{Name: rec.Cell + "-dummy", Layers: dummy.Layers, Primitives: draw.Emit(dummy)})
		}
		order = append(order, "unit.json", "unit.deck.json", "dummy.deck.json")
	}

	for _, a := range arrays {
		outputs[a.Spec.Name+".yaml"] = func(w io.Writer) error {
			return a.Spec.EncodeYAML(w)
		}
		outputs[a.Spec.Name+".csv"] = func(w io.Writer) error {
			return sheet.WritePlacements(w, a.Placements())
		}
		order = append(order, a.Spec.Name+".yaml", a.Spec.Name+".csv")
	}

	var files []string
	for _, name := range order {
		path := filepath.Join(dir, name)
		if err := writeFile(path, outputs[name]); err != nil {
			return files, fmt.Errorf("%s: %s", name, err)
		}
		files = append(files, path)
	}
	return files, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportRun, "run", "r", "", "run to export")
}
