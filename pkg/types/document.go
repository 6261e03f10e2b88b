// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"strings"
)

// DocumentKind classifies an input file by how a document handle is obtained
// for it.
type DocumentKind string

const (
	// KindNative is a project file the host opens directly.
	KindNative DocumentKind = "native"
	// KindBoard is a PCB board file imported into a fresh document.
	KindBoard DocumentKind = "board"
	// KindUnsupported marks a suffix neither procedure can handle.
	KindUnsupported DocumentKind = "unsupported"
)

// KindForPath returns the document kind for path based on its suffix.
// The comparison is case-insensitive.
func KindForPath(path string) DocumentKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fcstd":
		return KindNative
	case ".kicad_pcb":
		return KindBoard
	default:
		return KindUnsupported
	}
}

// DocumentSource is an input file paired with its kind. It selects which
// open procedure produces the document.
type DocumentSource struct {
	Kind DocumentKind `json:"kind" yaml:"kind"`
	Path string       `json:"path" yaml:"path"`

	// Rel is the path used to build output targets: the input as matched,
	// made relative and stripped of any leading "..".
	Rel string `json:"rel" yaml:"rel"`
}

// Object is a design object inside an open document.
type Object struct {
	// Name is the host's internal, unique object name.
	Name string `json:"name" yaml:"name"`

	// Label is the user-visible display name.
	Label string `json:"label" yaml:"label"`

	// Parents lists the names of objects that contain this one. Root
	// objects have none.
	Parents []string `json:"parents,omitempty" yaml:"parents,omitempty"`
}

// IsRoot reports whether the object has no parent relationship.
func (o Object) IsRoot() bool {
	return len(o.Parents) == 0
}

// Backend identifies an export implementation in the host.
type Backend string

const (
	BackendMesh    Backend = "mesh"
	BackendScene   Backend = "scene"
	BackendStep    Backend = "step"
	BackendGeneric Backend = "generic"
)

// Backends lists every backend in resolution-table order.
var Backends = []Backend{BackendMesh, BackendScene, BackendStep, BackendGeneric}

// Description returns the human-readable exporter name used in progress output.
func (b Backend) Description() string {
	switch b {
	case BackendMesh:
		return "Mesh exporter"
	case BackendScene:
		return "scene/VRML exporter"
	case BackendStep:
		return "STEP exporter"
	default:
		return "default exporter"
	}
}
