// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container implements container runtime detection and starts the
// headless host process, either inside a container image or as a local
// binary.
package container

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Mount binds a host directory into the container at the same path, so
// input and output paths mean the same thing on both sides.
type Mount struct {
	Path     string
	ReadOnly bool
}

// StartOptions configures a long-running container.
type StartOptions struct {
	Mounts  []Mount
	WorkDir string
	Command []string
	Stderr  io.Writer
}

// Runtime provides container operations: checking availability, verifying
// images, and starting interactive containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// ImageExists checks whether the named image exists locally.
	// Returns nil when the image is found, or an error describing the failure.
	ImageExists(image string) error

	// Start runs image with stdin and stdout attached and returns the live
	// process. The container is removed when it exits.
	Start(ctx context.Context, image string, opts StartOptions) (*Process, error)
}

// Process is a started child process with its stdin and stdout pipes. It
// satisfies io.ReadWriteCloser: reads come from stdout, writes go to stdin,
// and Close ends stdin and waits for exit.
type Process struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser
	wait   func() error
}

func (p *Process) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *Process) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close closes stdin and waits for the process to exit.
func (p *Process) Close() error {
	stdinErr := p.stdin.Close()
	if err := p.wait(); err != nil {
		return fmt.Errorf("waiting for process: %w", err)
	}
	return stdinErr
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	Start(ctx context.Context, name string, args []string, stderr io.Writer) (*Process, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) Start(ctx context.Context, name string, args []string, stderr io.Writer) (*Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe for %s: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe for %s: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}
	return &Process{stdin: stdin, stdout: stdout, wait: cmd.Wait}, nil
}

// runtime implements Runtime for a specific container binary. Both Docker
// and Podman share the same logic; they differ only in binary name and the
// subcommand used to check image existence.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Start(ctx context.Context, image string, opts StartOptions) (*Process, error) {
	p, err := r.exec.Start(ctx, r.bin, runArgs(image, opts), opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("running %s container %s: %w", r.bin, image, err)
	}
	return p, nil
}

// runArgs builds the "run" argument list for image.
func runArgs(image string, opts StartOptions) []string {
	args := []string{"run", "--rm", "-i"}
	for _, m := range opts.Mounts {
		vol := m.Path + ":" + m.Path
		if m.ReadOnly {
			vol += ":ro"
		}
		args = append(args, "-v", vol)
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	args = append(args, image)
	return append(args, opts.Command...)
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
	}
}

var defaultExec executor = &osExecutor{}

// DetectRuntime tries docker first, falls back to podman. Returns an error
// if neither runtime is available.
func DetectRuntime() (Runtime, error) {
	return detectRuntime(defaultExec)
}

func detectRuntime(exec executor) (Runtime, error) {
	docker := newDockerRuntime(exec)
	if docker.Available() {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.Available() {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}

// StartLocal starts argv directly on the host, without a container.
func StartLocal(ctx context.Context, argv []string, stderr io.Writer) (*Process, error) {
	return startLocal(ctx, defaultExec, argv, stderr)
}

func startLocal(ctx context.Context, exec executor, argv []string, stderr io.Writer) (*Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty host command")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("host binary %s not found on PATH: %w", argv[0], err)
	}
	return exec.Start(ctx, argv[0], argv[1:], stderr)
}

// NewProcess wraps already-open pipes as a Process. wait may be nil.
func NewProcess(stdin io.WriteCloser, stdout io.ReadCloser, wait func() error) *Process {
	if wait == nil {
		wait = func() error { return nil }
	}
	return &Process{stdin: stdin, stdout: stdout, wait: wait}
}
