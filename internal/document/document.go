// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package document obtains a live host document for an input file and
// guarantees it is closed exactly once.
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdiddy/cad-export/pkg/types"
)

// ErrUnsupportedKind is returned for inputs whose suffix matches no known
// document kind.
var ErrUnsupportedKind = errors.New("unsupported input kind")

// Host is the document service of the CAD application.
type Host interface {
	OpenDocument(ctx context.Context, path string) (string, error)
	NewDocument(ctx context.Context, name string) (string, error)
	ImportBoard(ctx context.Context, doc, path string) error
	Objects(ctx context.Context, doc string) ([]types.Object, error)
	CloseDocument(ctx context.Context, doc string) error
}

// Document is an open host document owned by one input's processing.
type Document struct {
	Name   string
	Source types.DocumentSource

	host   Host
	closed bool
}

// Open produces a populated document for src. Native sources are opened
// directly; board sources are imported into a new empty document. If a
// handle was obtained before a failure it is closed before returning.
func Open(ctx context.Context, h Host, src types.DocumentSource) (*Document, error) {
	switch src.Kind {
	case types.KindNative:
		return openNative(ctx, h, src)
	case types.KindBoard:
		return openBoard(ctx, h, src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, src.Path)
	}
}

func openNative(ctx context.Context, h Host, src types.DocumentSource) (*Document, error) {
	name, err := h.OpenDocument(ctx, src.Path)
	if err != nil {
		if name != "" {
			return nil, errors.Join(err, h.CloseDocument(ctx, name))
		}
		return nil, err
	}
	return &Document{Name: name, Source: src, host: h}, nil
}

func openBoard(ctx context.Context, h Host, src types.DocumentSource) (*Document, error) {
	name, err := h.NewDocument(ctx, docName(src.Path))
	if err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	d := &Document{Name: name, Source: src, host: h}
	if err := h.ImportBoard(ctx, name, src.Path); err != nil {
		return nil, errors.Join(fmt.Errorf("importing board: %w", err), d.Close(ctx))
	}
	return d, nil
}

// docName derives a host document name from the board's file name.
func docName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Objects lists every object in the document.
func (d *Document) Objects(ctx context.Context) ([]types.Object, error) {
	return d.host.Objects(ctx, d.Name)
}

// Roots returns the document's parentless objects.
func (d *Document) Roots(ctx context.Context) ([]types.Object, error) {
	objs, err := d.Objects(ctx)
	if err != nil {
		return nil, err
	}
	return RootObjects(objs), nil
}

// RootObjects keeps the objects with no parent relationship, in order.
func RootObjects(objs []types.Object) []types.Object {
	roots := make([]types.Object, 0, len(objs))
	for _, o := range objs {
		if o.IsRoot() {
			roots = append(roots, o)
		}
	}
	return roots
}

// Close closes the document in the host. Only the first call reaches the
// host; later calls return nil.
func (d *Document) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.host.CloseDocument(ctx, d.Name); err != nil {
		return fmt.Errorf("closing %s: %w", d.Name, err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (d *Document) Closed() bool { return d.closed }
