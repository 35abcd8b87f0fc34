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

	"github.com/spf13/cobra"

	"github.com/xoviat/capsynth/lib/array"
	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/store"
)

var libraryRun string

// libraryCmd represents the library command
var libraryCmd = &cobra.Command{
	Use:   "library <file.xml>",
	Short: "Write the cell masters of a run as an XML library.",
	Long: `Library writes one master for the unit cell, one for the dummy cell
and one per assembled array. Array masters hold the placed instances of
the unit and dummy masters.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore()
		if err != nil {
			fmt.Printf("failed to open store: %s\n", err)
			return
		}
		defer st.Close()

		rec, err := findRun(st, libraryRun)
		if err != nil {
			fmt.Printf("failed to find run: %s\n", err)
			return
		}

		library, err := newLibrary(st, rec)
		if err != nil {
			fmt.Printf("failed to build library: %s\n", err)
			return
		}

		fp, err := os.Create(args[0])
		if err != nil {
			fmt.Printf("failed to open file: %s\n", err)
			return
		}
		defer fp.Close()

		if err := draw.EncodeXML(fp, library); err != nil {
			fmt.Printf("failed to encode library: %s\n", err)
			return
		}
		for _, m := range library.Masters {
			fmt.Printf("wrote master %s (%d items)\n", m.Name, len(m.Items))
		}
	},
}

func newLibrary(st *store.Store, rec *store.RunRecord) (*draw.XMLLibrary, error) {
	unit, dummy, err := cells(rec)
	if err != nil {
		return nil, err
	}
	arrays, err := st.Arrays(rec.ID)
	if err != nil {
		return nil, err
	}

	library := &draw.XMLLibrary{
		Description: fmt.Sprintf("%s %s, run %s", rec.Cell, rec.Variant, rec.ID),
		Masters: []*draw.XMLMaster{
			draw.NewXMLMaster(array.MasterUnit, unit.Width(), unit.Height(), draw.Emit(unit)),
			draw.NewXMLMaster(array.MasterDummy, dummy.Width(), dummy.Height(), draw.Emit(dummy)),
		},
	}

	for _, a := range arrays {
		prims := []draw.Primitive{}
		for _, p := range a.Placements() {
			prims = append(prims, draw.Instance(p.Master, p.Origin, p.Region.Rows(), p.Region.Cols(), p.PitchX, p.PitchY))
		}
		width := float64(a.Spec.Cols) * a.PitchX
		height := float64(a.Spec.Rows) * a.PitchY
		library.Masters = append(library.Masters, draw.NewXMLMaster(a.Spec.Name, width, height, prims))
	}
	return library, nil
}

func init() {
	rootCmd.AddCommand(libraryCmd)

	libraryCmd.Flags().StringVarP(&libraryRun, "run", "r", "", "run to take the cells from")
}
