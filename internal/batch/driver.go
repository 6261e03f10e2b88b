// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch drives the export pipeline: expand input patterns, open each
// matched document, export its root objects once per requested format and
// close it again before moving on.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/pdiddy/cad-export/internal/document"
	"github.com/pdiddy/cad-export/internal/exporter"
	"github.com/pdiddy/cad-export/pkg/types"
)

// lockSuffix names the lock file kept beside the output root.
const lockSuffix = ".cad-export.lock"

// lockPath is the lock file guarding root. It sits next to root rather
// than inside it, so the output tree only ever holds exported files.
func lockPath(root string) string {
	root = filepath.Clean(root)
	parent := filepath.Dir(root)
	if parent == root {
		return filepath.Join(root, lockSuffix)
	}
	return filepath.Join(parent, "."+filepath.Base(root)+lockSuffix)
}

// Host is the document and export service the driver needs.
type Host interface {
	document.Host
	exporter.Exporter
}

// Configurator prepares the host for non-interactive export.
type Configurator interface {
	SuppressInteractiveDialogs(ctx context.Context) error
	ApplyExportPreferences(ctx context.Context) error
	ActivateBoardSubsystem(ctx context.Context) error
}

// Options tune the driver's policies.
type Options struct {
	// WorkDir is the base for relative patterns. Defaults to the process
	// working directory.
	WorkDir string

	Dedupe        bool
	OnUnsupported types.UnsupportedPolicy
	KeepGoing     bool

	// Logger receives diagnostics. Progress lines go to the driver's writer.
	Logger *log.Logger
}

// Result counts what a run did.
type Result struct {
	Inputs   int
	Exported int
	Skipped  int
	Failed   int
}

// HasFailures reports whether any input failed.
func (r Result) HasFailures() bool {
	return r.Failed > 0
}

// Driver runs batch exports against one host. It is not safe for
// concurrent use.
type Driver struct {
	host   Host
	table  exporter.Table
	cfg    Configurator
	w      io.Writer
	opts   Options
	logger *log.Logger

	boardReady bool
}

// NewDriver returns a driver exporting through h, preparing it with cfg and
// writing progress lines to w.
func NewDriver(h Host, cfg Configurator, w io.Writer, opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "batch"})
	}
	if opts.OnUnsupported == "" {
		opts.OnUnsupported = types.UnsupportedAbort
	}
	return &Driver{
		host:   h,
		table:  exporter.NewTable(h),
		cfg:    cfg,
		w:      w,
		opts:   opts,
		logger: logger,
	}
}

// Run exports every input matched by patterns into outputRoot, once per
// format. It fails fast: the first failing input ends the run unless
// KeepGoing is set, in which case the failures are joined into the returned
// error. Output written before a failure is left in place.
func (d *Driver) Run(ctx context.Context, patterns []string, outputRoot string, formats []string) (Result, error) {
	var res Result
	if err := Validate(patterns, outputRoot, formats); err != nil {
		return res, err
	}
	if err := d.validatePolicy(); err != nil {
		return res, err
	}

	workDir := d.opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return res, fmt.Errorf("resolving working directory: %w", err)
		}
		workDir = wd
	}
	if !filepath.IsAbs(outputRoot) {
		outputRoot = filepath.Join(workDir, outputRoot)
	}

	logger := d.logger.With("run", uuid.NewString())

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return res, fmt.Errorf("creating output root %s: %w", outputRoot, err)
	}
	lock := flock.New(lockPath(outputRoot))
	locked, err := lock.TryLock()
	if err != nil {
		return res, fmt.Errorf("locking output root %s: %w", outputRoot, err)
	}
	if !locked {
		return res, fmt.Errorf("%w: %s", ErrLocked, outputRoot)
	}
	defer lock.Unlock()

	sources, err := d.plan(workDir, patterns, &res, logger)
	if err != nil {
		return res, err
	}

	if err := d.cfg.SuppressInteractiveDialogs(ctx); err != nil {
		return res, &StepError{Step: StepPreflight, Err: err}
	}
	if err := d.cfg.ApplyExportPreferences(ctx); err != nil {
		return res, &StepError{Step: StepPreflight, Err: err}
	}

	var failures []error
	for _, src := range sources {
		res.Inputs++
		n, err := d.process(ctx, src, outputRoot, formats)
		res.Exported += n
		if err == nil {
			continue
		}
		res.Failed++
		if !d.opts.KeepGoing || fatal(err) {
			return res, err
		}
		logger.Error("input failed, continuing", "path", src.Path, "err", err)
		failures = append(failures, err)
	}

	fmt.Fprintf(d.w, "\nBatch summary: %d input(s), %d file(s) exported, %d skipped, %d failed\n",
		res.Inputs, res.Exported, res.Skipped, res.Failed)
	return res, errors.Join(failures...)
}

// Validate checks run inputs without touching the filesystem. Failures wrap
// ErrConfig.
func Validate(patterns []string, outputRoot string, formats []string) error {
	if len(patterns) == 0 {
		return fmt.Errorf("%w: no input paths", ErrConfig)
	}
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty input pattern", ErrConfig)
		}
	}
	if strings.TrimSpace(outputRoot) == "" {
		return fmt.Errorf("%w: no output path", ErrConfig)
	}
	if len(formats) == 0 {
		return fmt.Errorf("%w: no export types", ErrConfig)
	}
	for _, f := range formats {
		if f == "" || strings.ContainsAny(f, `./\`) {
			return fmt.Errorf("%w: invalid export type %q", ErrConfig, f)
		}
	}
	return nil
}

func (d *Driver) validatePolicy() error {
	switch d.opts.OnUnsupported {
	case types.UnsupportedAbort, types.UnsupportedSkip:
		return nil
	default:
		return fmt.Errorf("%w: unknown unsupported-input policy %q", ErrConfig, d.opts.OnUnsupported)
	}
}

// plan expands patterns and classifies every match before any document is
// opened, so an unsupported input aborts the run with no output written.
func (d *Driver) plan(workDir string, patterns []string, res *Result, logger *log.Logger) ([]types.DocumentSource, error) {
	all, err := Expand(workDir, patterns, d.opts.Dedupe)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		logger.Warn("input patterns matched no files", "patterns", patterns)
	}

	sources := make([]types.DocumentSource, 0, len(all))
	for _, src := range all {
		if src.Kind != types.KindUnsupported {
			sources = append(sources, src)
			continue
		}
		err := &StepError{
			Path: src.Path,
			Step: StepClassify,
			Err:  fmt.Errorf("%w: suffix %q", document.ErrUnsupportedKind, filepath.Ext(src.Path)),
		}
		if d.opts.OnUnsupported == types.UnsupportedAbort {
			return nil, err
		}
		logger.Warn("skipping unsupported input", "path", src.Path)
		res.Skipped++
	}
	return sources, nil
}

// process takes one input from unopened to closed. The document is closed
// on every path out of this function once it has been opened.
func (d *Driver) process(ctx context.Context, src types.DocumentSource, outputRoot string, formats []string) (exported int, err error) {
	if src.Kind == types.KindBoard && !d.boardReady {
		if err := d.cfg.ActivateBoardSubsystem(ctx); err != nil {
			return 0, &StepError{Path: src.Path, Step: StepActivate, Err: err}
		}
		d.boardReady = true
	}

	fmt.Fprintf(d.w, "Opening %s\n", src.Path)
	doc, err := document.Open(ctx, d.host, src)
	if err != nil {
		return 0, &StepError{Path: src.Path, Step: StepOpen, Err: err}
	}
	defer func() {
		fmt.Fprintf(d.w, "Closing %s\n", src.Path)
		if cerr := doc.Close(ctx); cerr != nil {
			err = errors.Join(err, &StepError{Path: src.Path, Step: StepClose, Err: cerr})
		}
	}()

	fmt.Fprintln(d.w, "Looking for root level objects")
	roots, err := doc.Roots(ctx)
	if err != nil {
		return 0, &StepError{Path: src.Path, Step: StepRoots, Err: err}
	}
	for _, o := range roots {
		fmt.Fprintln(d.w, o.Label)
	}

	for _, format := range formats {
		target := OutputTarget(outputRoot, src.Rel, format)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return exported, &StepError{Path: src.Path, Step: StepMkdir, Format: format, Err: err}
		}
		fmt.Fprintf(d.w, "Exporting to %s\n", target)
		backend, export := d.table.For(target)
		fmt.Fprintf(d.w, "Using %s\n", backend.Description())
		if err := export(ctx, doc.Name, roots, target); err != nil {
			return exported, &StepError{Path: src.Path, Step: StepExport, Format: format, Err: err}
		}
		exported++
	}
	return exported, nil
}
