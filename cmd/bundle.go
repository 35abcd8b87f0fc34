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

	"github.com/mholt/archiver"
	"github.com/spf13/cobra"
)

var bundleRun string

// bundleCmd represents the bundle command
var bundleCmd = &cobra.Command{
	Use:   "bundle <archive>",
	Short: "Pack the outputs of a run into one archive.",
	Long: `Bundle exports a run the same way export does and packs the files
into a single archive. The format follows the archive extension, for
example .zip or .tar.gz.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore()
		if err != nil {
			fmt.Printf("failed to open store: %s\n", err)
			return
		}
		defer st.Close()

		rec, err := findRun(st, bundleRun)
		if err != nil {
			fmt.Printf("failed to find run: %s\n", err)
			return
		}

		tmp, err := os.MkdirTemp("", "capsynth-")
		if err != nil {
			fmt.Printf("failed to create staging directory: %s\n", err)
			return
		}
		defer os.RemoveAll(tmp)

		dir := filepath.Join(tmp, rec.Cell+"-"+rec.ID[:8])
		files, err := writeOutputs(st, dir, rec)
		if err != nil {
			fmt.Printf("failed to export run: %s\n", err)
			return
		}

		dst, err := filepath.Abs(args[0])
		if err != nil {
			fmt.Printf("failed to normalize path: %s\n", err)
			return
		}
		if err := archiver.Archive([]string{dir}, dst); err != nil {
			fmt.Printf("failed to write archive: %s\n", err)
			return
		}
		fmt.Printf("wrote %s (%d files)\n", dst, len(files))
	},
}

func init() {
	rootCmd.AddCommand(bundleCmd)

	bundleCmd.Flags().StringVarP(&bundleRun, "run", "r", "", "run to bundle")
}
