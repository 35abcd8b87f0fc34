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
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xoviat/capsynth/lib/sheet"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <src> <dst>",
	Short: "Convert array specs between workbooks and YAML.",
	Long: `Import validates an array spec and writes it in the other format.

		- capsynth import quad.xlsx quad.yaml : workbook to YAML
		- capsynth import quad.yaml quad.xlsx : YAML to workbook

	A workbook holds a "cells" sheet with the grid, one member name or the
	dummy sentinel per cell, and a "groups" sheet listing each group's name,
	pin and optional "row,col" members.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := loadSpec(args[0])
		if err != nil {
			fmt.Printf("failed to load array spec: %s\n", err)
			return
		}

		dst := args[1]
		fp, err := os.Create(dst)
		if err != nil {
			fmt.Printf("failed to open file: %s\n", err)
			return
		}
		defer fp.Close()

		switch strings.ToLower(filepath.Ext(dst)) {
		case ".xlsx":
			err = sheet.WriteSpec(fp, spec)
		case ".yaml", ".yml":
			err = spec.EncodeYAML(fp)
		default:
			err = fmt.Errorf("%s: array specs must be .yaml or .xlsx", dst)
		}
		if err != nil {
			fmt.Printf("failed to write array spec: %s\n", err)
			return
		}

		fmt.Printf("%s: %dx%d grid, %d groups\n", spec.Name, spec.Rows, spec.Cols, len(spec.Groups))
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
