// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package host defines the narrow interface to the CAD host application and
// a client that drives a headless host process over a JSON-lines pipe.
package host

import (
	"context"
	"errors"

	"github.com/pdiddy/cad-export/pkg/types"
)

// ErrHost is wrapped by every failure reported by the host application
// itself, as opposed to transport failures.
var ErrHost = errors.New("host error")

// Host is the document, export, workbench and parameter service of the CAD
// application. Document handles are the host's document names.
type Host interface {
	// OpenDocument opens a native project file.
	OpenDocument(ctx context.Context, path string) (string, error)

	// NewDocument creates an empty document.
	NewDocument(ctx context.Context, name string) (string, error)

	// ImportBoard populates doc from a PCB board file, generating geometry.
	ImportBoard(ctx context.Context, doc, path string) error

	// Objects lists every object in doc with its parent relationships.
	Objects(ctx context.Context, doc string) ([]types.Object, error)

	// Export writes the named objects of doc to dest using backend.
	Export(ctx context.Context, backend types.Backend, doc string, objects []string, dest string) error

	// CloseDocument closes doc without saving.
	CloseDocument(ctx context.Context, doc string) error

	// ActivateWorkbench switches the application to the named workbench.
	ActivateWorkbench(ctx context.Context, name string) error

	// RunCommand runs a named application command.
	RunCommand(ctx context.Context, name string) error

	// HookDialogs makes the host forward informational dialogs as events
	// instead of displaying them.
	HookDialogs(ctx context.Context) error

	// GetParam reads a parameter. ok is false when the key is unset.
	GetParam(ctx context.Context, namespace, key string) (v types.PrefValue, ok bool, err error)

	// SetParam writes a parameter to the host's persistent store.
	SetParam(ctx context.Context, namespace, key string, v types.PrefValue) error
}

// ParamStore exposes a Host's parameter service as a preference store.
type ParamStore struct {
	Host Host
}

func (s ParamStore) Get(ctx context.Context, namespace, key string) (types.PrefValue, bool, error) {
	return s.Host.GetParam(ctx, namespace, key)
}

func (s ParamStore) Set(ctx context.Context, namespace, key string, v types.PrefValue) error {
	return s.Host.SetParam(ctx, namespace, key, v)
}
