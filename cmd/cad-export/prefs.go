// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/cad-export/internal/prefs"
	"github.com/pdiddy/cad-export/pkg/types"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect and record the host preferences applied before export",
	Long: `Prefs shows the fixed preference set the export run writes into the
host, and records or dumps it through a local SQLite journal. The journal is
the same file the export command writes to with --prefs-journal.`,
}

// --- show subcommand ---

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the export (and optionally board) preferences",
	RunE:  runPrefsShow,
}

func runPrefsShow(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	return prefs.Dump(os.Stdout, preferenceSet(cmd), format)
}

// --- apply subcommand ---

var prefsApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Write the preference set, or a dump file, into the journal",
	Long: `Apply writes the export preferences (plus the board preferences with
--board) into the SQLite journal given by --db. With --file, the entries of a
YAML or JSON dump are written instead.`,
	RunE: runPrefsApply,
}

func runPrefsApply(cmd *cobra.Command, args []string) error {
	store, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ps := preferenceSet(cmd)
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("opening dump: %w", err)
		}
		defer f.Close()
		if ps, err = prefs.Load(f); err != nil {
			return err
		}
	}

	if err := prefs.Apply(context.Background(), store, ps); err != nil {
		return err
	}
	fmt.Printf("Applied %d preference(s)\n", len(ps))
	return nil
}

// --- dump subcommand ---

var prefsDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the journal's current preferences as YAML or JSON",
	Long: `Dump writes the journal's current value for every preference to
stdout, and the number of writes recorded in its history to stderr.`,
	RunE:  runPrefsDump,
}

func runPrefsDump(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	return dumpJournal(context.Background(), store, format, os.Stdout, os.Stderr)
}

// dumpJournal writes the journal's current preferences to out and a
// one-line summary with the number of journaled writes to info.
func dumpJournal(ctx context.Context, store *prefs.SQLiteStore, format string, out, info io.Writer) error {
	ps, err := store.All(ctx)
	if err != nil {
		return err
	}
	writes, err := store.HistoryLen(ctx)
	if err != nil {
		return err
	}
	if err := prefs.Dump(out, ps, format); err != nil {
		return err
	}
	fmt.Fprintf(info, "%d preference(s), %d journaled write(s)\n", len(ps), writes)
	return nil
}

// --- shared helpers ---

func preferenceSet(cmd *cobra.Command) []types.Preference {
	ps := prefs.ExportPreferences()
	if board, _ := cmd.Flags().GetBool("board"); board {
		ps = append(ps, prefs.BoardPreferences(viper.GetString("board.models_path"))...)
	}
	return ps
}

func openJournal(cmd *cobra.Command) (*prefs.SQLiteStore, error) {
	db, _ := cmd.Flags().GetString("db")
	if db == "" {
		db = viper.GetString("prefs_journal")
	}
	if db == "" {
		return nil, fmt.Errorf("no journal: set --db or prefs_journal")
	}
	return prefs.OpenSQLiteStore(db)
}

func init() {
	for _, c := range []*cobra.Command{prefsShowCmd, prefsApplyCmd} {
		c.Flags().Bool("board", false, "include the board subsystem preferences")
	}
	for _, c := range []*cobra.Command{prefsShowCmd, prefsDumpCmd} {
		c.Flags().String("format", "yaml", "output format: yaml or json")
	}
	for _, c := range []*cobra.Command{prefsApplyCmd, prefsDumpCmd} {
		c.Flags().String("db", "", "preference journal database (default: prefs_journal setting)")
	}
	prefsApplyCmd.Flags().String("file", "", "apply the entries of a YAML or JSON dump instead")

	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsApplyCmd)
	prefsCmd.AddCommand(prefsDumpCmd)
	rootCmd.AddCommand(prefsCmd)
}
