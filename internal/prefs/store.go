// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prefs brings the host application's persistent settings into the
// fixed state batch export needs, through an injected Store.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pdiddy/cad-export/pkg/types"
)

// ErrNamespace reports a preference namespace the store does not know.
var ErrNamespace = errors.New("unknown preference namespace")

// Store is a namespace-keyed settings service.
type Store interface {
	Get(ctx context.Context, namespace, key string) (types.PrefValue, bool, error)
	Set(ctx context.Context, namespace, key string, v types.PrefValue) error
}

// MemoryStore is an in-process Store. When namespaces are declared with
// NewMemoryStore, writes to any other namespace fail with ErrNamespace.
type MemoryStore struct {
	mu     sync.Mutex
	known  map[string]bool
	values map[string]map[string]types.PrefValue
}

// NewMemoryStore returns an empty store. With no namespaces given every
// namespace is accepted.
func NewMemoryStore(namespaces ...string) *MemoryStore {
	s := &MemoryStore{values: make(map[string]map[string]types.PrefValue)}
	if len(namespaces) > 0 {
		s.known = make(map[string]bool, len(namespaces))
		for _, ns := range namespaces {
			s.known[ns] = true
		}
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, namespace, key string) (types.PrefValue, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(namespace); err != nil {
		return types.PrefValue{}, false, err
	}
	v, ok := s.values[namespace][key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, namespace, key string, v types.PrefValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(namespace); err != nil {
		return err
	}
	ns, ok := s.values[namespace]
	if !ok {
		ns = make(map[string]types.PrefValue)
		s.values[namespace] = ns
	}
	ns[key] = v
	return nil
}

func (s *MemoryStore) check(namespace string) error {
	if s.known != nil && !s.known[namespace] {
		return fmt.Errorf("%w: %s", ErrNamespace, namespace)
	}
	return nil
}

// All returns every stored preference sorted by namespace then key.
func (s *MemoryStore) All() []types.Preference {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Preference
	for ns, keys := range s.values {
		for k, v := range keys {
			out = append(out, types.Preference{Namespace: ns, Key: k, Value: v})
		}
	}
	sortPreferences(out)
	return out
}

func sortPreferences(ps []types.Preference) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Namespace != ps[j].Namespace {
			return ps[i].Namespace < ps[j].Namespace
		}
		return ps[i].Key < ps[j].Key
	})
}

// Tee writes to every store in order and reads from the first. A failed
// write stops at that store.
type Tee []Store

func (t Tee) Get(ctx context.Context, namespace, key string) (types.PrefValue, bool, error) {
	if len(t) == 0 {
		return types.PrefValue{}, false, nil
	}
	return t[0].Get(ctx, namespace, key)
}

func (t Tee) Set(ctx context.Context, namespace, key string, v types.PrefValue) error {
	for _, s := range t {
		if err := s.Set(ctx, namespace, key, v); err != nil {
			return err
		}
	}
	return nil
}
