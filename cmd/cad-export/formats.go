// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/cad-export/internal/exporter"
	"github.com/pdiddy/cad-export/pkg/types"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List export suffixes and the exporter each one selects",
	Run: func(cmd *cobra.Command, args []string) {
		printFormats(os.Stdout)
	},
}

func printFormats(w io.Writer) {
	fmt.Fprintf(w, "%-20s  %s\n", "Exporter", "Suffixes")
	fmt.Fprintln(w, strings.Repeat("-", 48))
	for _, b := range types.Backends {
		suffixes := exporter.Suffixes(b)
		list := strings.Join(suffixes, ", ")
		if len(suffixes) == 0 {
			list = "(any other)"
		}
		fmt.Fprintf(w, "%-20s  %s\n", b.Description(), list)
	}
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
