package types

// UnsupportedPolicy decides what happens when an input's suffix matches no
// known document kind.
type UnsupportedPolicy string

const (
	// UnsupportedAbort fails the whole run before any document is opened.
	UnsupportedAbort UnsupportedPolicy = "abort"
	// UnsupportedSkip logs a warning and leaves the input out of the run.
	UnsupportedSkip UnsupportedPolicy = "skip"
)

// ExportConfig holds the settings for one batch export run.
type ExportConfig struct {
	// InputPatterns are glob patterns, "**" included, evaluated relative to
	// the working directory. Order is preserved.
	InputPatterns []string `json:"input_paths" yaml:"input_paths"`

	// OutputRoot is the directory output targets are placed under.
	OutputRoot string `json:"output_path" yaml:"output_path"`

	// Formats are lowercase extension-like tokens without a leading dot.
	Formats []string `json:"export_types" yaml:"export_types"`

	// Dedupe drops a path already matched by an earlier pattern. Off by
	// default: overlapping patterns process a file once per match.
	Dedupe bool `json:"dedupe" yaml:"dedupe"`

	// OnUnsupported selects the unsupported-suffix policy (default abort).
	OnUnsupported UnsupportedPolicy `json:"on_unsupported" yaml:"on_unsupported"`

	// KeepGoing records a failed input and moves on to the next one. The run
	// still reports failure.
	KeepGoing bool `json:"keep_going" yaml:"keep_going"`
}

// HostMode selects how the host application process is launched.
type HostMode string

const (
	HostLocal     HostMode = "local"
	HostContainer HostMode = "container"
)

// HostConfig describes how to start the headless host bridge.
type HostConfig struct {
	Mode HostMode `json:"mode" yaml:"mode"`

	// Command is the bridge command line for local mode, or the command run
	// inside the image in container mode.
	Command []string `json:"command" yaml:"command"`

	// Image is the container image used in container mode.
	Image string `json:"image" yaml:"image"`
}

// BoardConfig holds settings for the PCB board import subsystem.
type BoardConfig struct {
	// ModelsPath is the default search path for 3D model assets.
	ModelsPath string `json:"models_path" yaml:"models_path"`
}
