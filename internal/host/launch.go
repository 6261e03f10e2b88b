// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package host

import (
	"context"
	_ "embed"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/cad-export/internal/container"
	"github.com/pdiddy/cad-export/internal/prompt"
	"github.com/pdiddy/cad-export/pkg/types"
)

// BridgeScript is the host side of the bridge protocol. It runs inside the
// host's Python interpreter.
//
//go:embed cadbridge.py
var BridgeScript string

// HostBinary is the host's console executable.
const HostBinary = "freecadcmd"

// DefaultCommand runs BridgeScript in the host's console binary. The
// script travels on the command line, so no file has to be visible to a
// containerized host.
func DefaultCommand() []string {
	return []string{HostBinary, "-c", BridgeScript}
}

// DefaultImage is the container image used in container mode.
const DefaultImage = "freecad-bridge:latest"

// LaunchOptions are the process-level settings for Launch.
type LaunchOptions struct {
	// Mounts are the directories the host must see at the same path.
	// Only used in container mode.
	Mounts  []string
	WorkDir string
	Stderr  io.Writer
	Logger  *log.Logger
}

// Launch starts the host process described by cfg and returns a connected
// bridge. The caller must Close the bridge.
func Launch(ctx context.Context, cfg types.HostConfig, p prompt.UserPrompter, opts LaunchOptions) (*Bridge, error) {
	command := cfg.Command
	if len(command) == 0 {
		command = DefaultCommand()
	}

	var (
		proc *container.Process
		err  error
	)
	switch cfg.Mode {
	case types.HostContainer:
		proc, err = launchContainer(ctx, cfg, command, opts)
	case types.HostLocal, "":
		proc, err = container.StartLocal(ctx, command, opts.Stderr)
	default:
		return nil, fmt.Errorf("unknown host mode %q (want %q or %q)", cfg.Mode, types.HostLocal, types.HostContainer)
	}
	if err != nil {
		return nil, fmt.Errorf("launching host: %w", err)
	}

	b := NewBridge(proc, p)
	if opts.Logger != nil {
		b.SetLogger(opts.Logger)
	}
	return b, nil
}

func launchContainer(ctx context.Context, cfg types.HostConfig, command []string, opts LaunchOptions) (*container.Process, error) {
	rt, err := container.DetectRuntime()
	if err != nil {
		return nil, err
	}
	image := cfg.Image
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, err
	}
	if opts.Logger != nil {
		opts.Logger.Info("starting host container", "runtime", rt.Name(), "image", image)
	}

	mounts := make([]container.Mount, 0, len(opts.Mounts))
	for _, m := range opts.Mounts {
		mounts = append(mounts, container.Mount{Path: m})
	}
	return rt.Start(ctx, image, container.StartOptions{
		Mounts:  mounts,
		WorkDir: opts.WorkDir,
		Command: command,
		Stderr:  opts.Stderr,
	})
}
