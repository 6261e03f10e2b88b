// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"errors"
	"fmt"
)

// ErrConfig marks missing or malformed run configuration. It is always
// reported before any document is opened.
var ErrConfig = errors.New("configuration error")

// ErrLocked is returned when another run holds the output root.
var ErrLocked = errors.New("output root is locked by another run")

// Step names the stage of an input's processing that failed.
type Step string

const (
	StepClassify  Step = "classify"
	StepOpen      Step = "open"
	StepRoots     Step = "roots"
	StepMkdir     Step = "mkdir"
	StepExport    Step = "export"
	StepClose     Step = "close"
	StepActivate  Step = "activate board subsystem"
	StepPreflight Step = "preferences"
)

// StepError is a failure tied to one input path and step.
type StepError struct {
	Path   string
	Step   Step
	Format string // set for export failures
	Err    error
}

func (e *StepError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Path, e.Step, e.Format, e.Err)
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// fatal reports whether err must stop the run even when failed inputs are
// otherwise tolerated.
func fatal(err error) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step == StepActivate || se.Step == StepPreflight || se.Step == StepClassify
	}
	return true
}
