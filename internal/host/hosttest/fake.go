// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hosttest provides an in-memory host for tests.
package hosttest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/cad-export/internal/host"
	"github.com/pdiddy/cad-export/pkg/types"
)

// Fake is an in-memory host.Host. Export writes a small deterministic file
// at the destination so filesystem effects can be asserted.
type Fake struct {
	mu sync.Mutex

	// Files maps an input path to the objects its document contains.
	// Paths missing from the map open as documents with no objects.
	Files map[string][]types.Object

	// FailOpen, FailImport and FailClose make the matching step fail for
	// the listed input paths (open/import) or document names (close).
	FailOpen   map[string]error
	FailImport map[string]error
	FailClose  map[string]error

	// FailExport fails exports whose destination has one of these
	// suffixes, e.g. ".stl".
	FailExport map[string]error

	// OpenHandleOnError makes a failed OpenDocument still return a handle.
	OpenHandleOnError bool

	// Calls records every host call as "method:arg".
	Calls []string

	// Params is the parameter store.
	Params map[string]types.PrefValue

	open   map[string]string
	seq    int
	nextID map[string]int
}

var _ host.Host = (*Fake)(nil)

// NewFake returns an empty fake host.
func NewFake() *Fake {
	return &Fake{
		Files:      map[string][]types.Object{},
		FailOpen:   map[string]error{},
		FailImport: map[string]error{},
		FailClose:  map[string]error{},
		FailExport: map[string]error{},
		Params:     map[string]types.PrefValue{},
		open:       map[string]string{},
		nextID:     map[string]int{},
	}
}

func (f *Fake) record(method, arg string) {
	f.Calls = append(f.Calls, method+":"+arg)
}

func (f *Fake) newName(base string) string {
	f.nextID[base]++
	if n := f.nextID[base]; n > 1 {
		return fmt.Sprintf("%s%03d", base, n-1)
	}
	return base
}

func (f *Fake) OpenDocument(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("open", path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err, ok := f.FailOpen[path]; ok {
		if f.OpenHandleOnError {
			name := f.newName(base)
			f.open[name] = path
			return name, err
		}
		return "", err
	}
	name := f.newName(base)
	f.open[name] = path
	return name, nil
}

func (f *Fake) NewDocument(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("new", name)
	doc := f.newName(name)
	f.open[doc] = ""
	return doc, nil
}

func (f *Fake) ImportBoard(_ context.Context, doc, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("import", path)
	if err, ok := f.FailImport[path]; ok {
		return err
	}
	f.open[doc] = path
	return nil
}

func (f *Fake) Objects(_ context.Context, doc string) ([]types.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("objects", doc)
	path, ok := f.open[doc]
	if !ok {
		return nil, fmt.Errorf("%w: no open document %s", host.ErrHost, doc)
	}
	return append([]types.Object(nil), f.Files[path]...), nil
}

func (f *Fake) Export(_ context.Context, backend types.Backend, doc string, objects []string, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("export", dest)
	if _, ok := f.open[doc]; !ok {
		return fmt.Errorf("%w: no open document %s", host.ErrHost, doc)
	}
	if err, ok := f.FailExport[strings.ToLower(filepath.Ext(dest))]; ok {
		return err
	}
	content := fmt.Sprintf("%s %s\n", backend, strings.Join(objects, ","))
	return os.WriteFile(dest, []byte(content), 0o644)
}

func (f *Fake) CloseDocument(_ context.Context, doc string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("close", doc)
	if _, ok := f.open[doc]; !ok {
		return fmt.Errorf("%w: no open document %s", host.ErrHost, doc)
	}
	delete(f.open, doc)
	if err, ok := f.FailClose[doc]; ok {
		return err
	}
	return nil
}

func (f *Fake) ActivateWorkbench(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("workbench", name)
	return nil
}

func (f *Fake) RunCommand(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("command", name)
	return nil
}

func (f *Fake) HookDialogs(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("hook", "")
	return nil
}

func (f *Fake) GetParam(_ context.Context, namespace, key string) (types.PrefValue, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Params[namespace+"/"+key]
	return v, ok, nil
}

func (f *Fake) SetParam(_ context.Context, namespace, key string, v types.PrefValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("param", namespace+"/"+key)
	f.Params[namespace+"/"+key] = v
	return nil
}

// OpenDocuments returns the names of documents still open, sorted.
func (f *Fake) OpenDocuments() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.open))
	for n := range f.open {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CallsTo returns the recorded arguments of every call to method.
func (f *Fake) CallsTo(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	prefix := method + ":"
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, strings.TrimPrefix(c, prefix))
		}
	}
	return out
}
