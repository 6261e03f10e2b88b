// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prefs

import (
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/cad-export/pkg/types"
)

// dumpEntry is the flat, human-readable form of one preference.
type dumpEntry struct {
	Namespace string         `json:"namespace" yaml:"namespace"`
	Key       string         `json:"key" yaml:"key"`
	Kind      types.PrefKind `json:"kind" yaml:"kind"`
	Value     string         `json:"value" yaml:"value"`
}

// Dump writes ps to w as "yaml" or "json".
func Dump(w io.Writer, ps []types.Preference, format string) error {
	entries := make([]dumpEntry, len(ps))
	for i, p := range ps {
		entries[i] = dumpEntry{
			Namespace: p.Namespace,
			Key:       p.Key,
			Kind:      p.Value.Kind,
			Value:     p.Value.String(),
		}
	}

	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown dump format %q (want yaml or json)", format)
	}
}

// Load reads a YAML or JSON dump back into preferences.
func Load(r io.Reader) ([]types.Preference, error) {
	var entries []dumpEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("parsing preference dump: %w", err)
	}
	out := make([]types.Preference, 0, len(entries))
	for _, e := range entries {
		v, err := types.ParsePrefValue(e.Kind, e.Value)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", e.Namespace, e.Key, err)
		}
		out = append(out, types.Preference{Namespace: e.Namespace, Key: e.Key, Value: v})
	}
	return out, nil
}
