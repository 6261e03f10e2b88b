// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/cad-export/internal/batch"
	"github.com/pdiddy/cad-export/internal/host"
	"github.com/pdiddy/cad-export/internal/prefs"
	"github.com/pdiddy/cad-export/internal/prompt"
	"github.com/pdiddy/cad-export/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export matched CAD documents to the requested formats",
	Long: `Export expands the input glob patterns ("**" supported), opens each
matched project (.FCStd) or board (.kicad_pcb) in the host application, and
exports its top-level objects once per export type. Output files are written
under the output path with the input's relative path and the export type as
extension.

The suffix picks the exporter: stl uses the mesh exporter; wrl, vrml and x3d
the scene exporter; step the STEP exporter; anything else the default one.`,
	RunE: runExport,
}

func init() {
	addExportFlags(exportCmd)

	_ = viper.BindPFlag("dedupe", exportCmd.Flags().Lookup("dedupe"))
	_ = viper.BindPFlag("keep_going", exportCmd.Flags().Lookup("keep-going"))
	_ = viper.BindPFlag("on_unsupported", exportCmd.Flags().Lookup("on-unsupported"))
	_ = viper.BindPFlag("host.mode", exportCmd.Flags().Lookup("host-mode"))
	_ = viper.BindPFlag("host.image", exportCmd.Flags().Lookup("host-image"))
	_ = viper.BindPFlag("board.models_path", exportCmd.Flags().Lookup("models-path"))
	_ = viper.BindPFlag("prefs_journal", exportCmd.Flags().Lookup("prefs-journal"))

	rootCmd.AddCommand(exportCmd)
}

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("input", "i", nil, "input glob pattern (repeatable; overrides "+envInputPaths+")")
	cmd.Flags().StringP("output", "o", "", "output directory (overrides "+envOutputPath+")")
	cmd.Flags().StringArrayP("type", "t", nil, "export type, e.g. step, stl, wrl (repeatable; overrides "+envExportTypes+")")
	cmd.Flags().Bool("dedupe", false, "process a file matched by several patterns only once")
	cmd.Flags().Bool("keep-going", false, "continue with the next input after a failure")
	cmd.Flags().String("on-unsupported", "", "policy for inputs with an unknown suffix: abort or skip")
	cmd.Flags().String("host-mode", "", "how to start the host: local or container")
	cmd.Flags().String("host-image", "", "container image for container mode")
	cmd.Flags().String("models-path", "", "3D model search path for board import")
	cmd.Flags().String("prefs-journal", "", "SQLite file that records every preference written")
}

// exportSettings is everything an export run needs from configuration.
type exportSettings struct {
	Export       types.ExportConfig
	Host         types.HostConfig
	Board        types.BoardConfig
	PrefsJournal string
}

// loadExportSettings merges flags over viper (config file and environment).
func loadExportSettings(cmd *cobra.Command) exportSettings {
	s := exportSettings{
		Export: types.ExportConfig{
			InputPatterns: listSetting(cmd, "input", "input_paths"),
			OutputRoot:    strings.TrimSpace(viper.GetString("output_path")),
			Formats:       normalizeFormats(listSetting(cmd, "type", "export_types")),
			Dedupe:        viper.GetBool("dedupe"),
			OnUnsupported: types.UnsupportedPolicy(viper.GetString("on_unsupported")),
			KeepGoing:     viper.GetBool("keep_going"),
		},
		Host: types.HostConfig{
			Mode:    types.HostMode(viper.GetString("host.mode")),
			Command: viper.GetStringSlice("host.command"),
			Image:   viper.GetString("host.image"),
		},
		Board:        types.BoardConfig{ModelsPath: viper.GetString("board.models_path")},
		PrefsJournal: viper.GetString("prefs_journal"),
	}
	if cmd.Flags().Changed("output") {
		s.Export.OutputRoot, _ = cmd.Flags().GetString("output")
	}
	return s
}

// listSetting returns the repeatable flag if given, otherwise the viper
// value. A string value is split on newlines, as the environment form is.
func listSetting(cmd *cobra.Command, flag, key string) []string {
	if cmd.Flags().Changed(flag) {
		vals, _ := cmd.Flags().GetStringArray(flag)
		return cleanLines(vals)
	}
	switch v := viper.Get(key).(type) {
	case string:
		return cleanLines(strings.Split(v, "\n"))
	case []string:
		return cleanLines(v)
	case []any:
		vals := make([]string, 0, len(v))
		for _, x := range v {
			vals = append(vals, fmt.Sprint(x))
		}
		return cleanLines(vals)
	default:
		return nil
	}
}

func cleanLines(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// normalizeFormats lowercases tokens and drops a leading dot.
func normalizeFormats(in []string) []string {
	out := make([]string, len(in))
	for i, f := range in {
		out[i] = strings.ToLower(strings.TrimPrefix(f, "."))
	}
	return out
}

func runExport(cmd *cobra.Command, args []string) error {
	s := loadExportSettings(cmd)

	fmt.Println("Parsing args")
	fmt.Printf("input_paths: %q\n", s.Export.InputPatterns)
	fmt.Printf("output_path: %s\n", s.Export.OutputRoot)
	fmt.Printf("export_types: %q\n", s.Export.Formats)

	if err := batch.Validate(s.Export.InputPatterns, s.Export.OutputRoot, s.Export.Formats); err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	outAbs := s.Export.OutputRoot
	if !filepath.IsAbs(outAbs) {
		outAbs = filepath.Join(wd, outAbs)
	}

	ctx := context.Background()
	bridge, err := host.Launch(ctx, s.Host, prompt.NewLogPrompter(os.Stderr), host.LaunchOptions{
		Mounts:  mountsFor(wd, outAbs, s.Export.InputPatterns),
		WorkDir: wd,
		Stderr:  os.Stderr,
		Logger:  logger.WithPrefix("host"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := bridge.Close(); cerr != nil {
			logger.Warn("closing host", "err", cerr)
		}
	}()

	var store prefs.Store = host.ParamStore{Host: bridge}
	if s.PrefsJournal != "" {
		journal, err := prefs.OpenSQLiteStore(s.PrefsJournal)
		if err != nil {
			return err
		}
		defer journal.Close()
		store = prefs.Tee{store, journal}
	}

	res, err := exportWith(ctx, s, wd, bridge, store, os.Stdout)
	if err != nil {
		return err
	}
	if res.HasFailures() {
		return fmt.Errorf("%d input(s) failed export", res.Failed)
	}
	return nil
}

// exportHost is the host surface an export run uses.
type exportHost interface {
	batch.Host
	prefs.Subsystem
}

// exportWith runs the batch against an already-started host.
func exportWith(ctx context.Context, s exportSettings, workDir string, h exportHost, store prefs.Store, w io.Writer) (batch.Result, error) {
	cfg := prefs.NewConfigurator(store, h, s.Board.ModelsPath, w)
	d := batch.NewDriver(h, cfg, w, batch.Options{
		WorkDir:       workDir,
		Dedupe:        s.Export.Dedupe,
		OnUnsupported: s.Export.OnUnsupported,
		KeepGoing:     s.Export.KeepGoing,
		Logger:        logger.WithPrefix("batch"),
	})
	fmt.Fprintln(w, "Running export")
	return d.Run(ctx, s.Export.InputPatterns, s.Export.OutputRoot, s.Export.Formats)
}

// mountsFor lists the directories a containerized host must see: the
// working directory, the output root and any absolute pattern roots.
func mountsFor(workDir, outputRoot string, patterns []string) []string {
	seen := map[string]bool{}
	var mounts []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			mounts = append(mounts, p)
		}
	}
	add(workDir)
	if !within(workDir, outputRoot) {
		add(outputRoot)
	}
	for _, p := range patterns {
		if !filepath.IsAbs(p) {
			continue
		}
		root := staticPrefix(p)
		if !within(workDir, root) {
			add(root)
		}
	}
	return mounts
}

// staticPrefix returns the longest leading directory of pattern with no
// glob metacharacters.
func staticPrefix(pattern string) string {
	dir := filepath.Dir(pattern)
	for strings.ContainsAny(dir, "*?[{") {
		dir = filepath.Dir(dir)
	}
	return dir
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
