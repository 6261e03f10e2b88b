// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package exporter maps output suffixes to export backends and binds each
// backend to a host.
package exporter

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/cad-export/pkg/types"
)

// suffixes is the resolution table. Anything missing resolves to the
// generic backend.
var suffixes = map[string]types.Backend{
	".stl":  types.BackendMesh,
	".wrl":  types.BackendScene,
	".vrml": types.BackendScene,
	".x3d":  types.BackendScene,
	".step": types.BackendStep,
}

// Resolve returns the backend for path's suffix, ignoring case.
func Resolve(path string) types.Backend {
	if b, ok := suffixes[strings.ToLower(filepath.Ext(path))]; ok {
		return b
	}
	return types.BackendGeneric
}

// Suffixes returns the suffixes bound to b, sorted. The generic backend has
// none: it is the fallback.
func Suffixes(b types.Backend) []string {
	var out []string
	for s, sb := range suffixes {
		if sb == b {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Func serializes a document's objects to dest.
type Func func(ctx context.Context, doc string, objects []types.Object, dest string) error

// Exporter is the host's export service.
type Exporter interface {
	Export(ctx context.Context, backend types.Backend, doc string, objects []string, dest string) error
}

// Table holds one export function per backend.
type Table map[types.Backend]Func

// NewTable binds every backend to h.
func NewTable(h Exporter) Table {
	t := make(Table, len(types.Backends))
	for _, b := range types.Backends {
		t[b] = bind(h, b)
	}
	return t
}

func bind(h Exporter, b types.Backend) Func {
	return func(ctx context.Context, doc string, objects []types.Object, dest string) error {
		names := make([]string, len(objects))
		for i, o := range objects {
			names[i] = o.Name
		}
		return h.Export(ctx, b, doc, names, dest)
	}
}

// For resolves dest's backend and returns it with its export function.
func (t Table) For(dest string) (types.Backend, Func) {
	b := Resolve(dest)
	return b, t[b]
}
