// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strconv"
)

// PrefKind is the type tag of a preference value.
type PrefKind string

const (
	PrefInt    PrefKind = "int"
	PrefBool   PrefKind = "bool"
	PrefString PrefKind = "string"
)

// PrefValue is a typed preference value. Exactly one of the payload fields is
// meaningful, selected by Kind.
type PrefValue struct {
	Kind PrefKind `json:"kind" yaml:"kind"`
	Int  int64    `json:"int,omitempty" yaml:"int,omitempty"`
	Bool bool     `json:"bool,omitempty" yaml:"bool,omitempty"`
	Str  string   `json:"string,omitempty" yaml:"string,omitempty"`
}

// IntValue wraps n as an integer preference.
func IntValue(n int64) PrefValue { return PrefValue{Kind: PrefInt, Int: n} }

// BoolValue wraps b as a boolean preference.
func BoolValue(b bool) PrefValue { return PrefValue{Kind: PrefBool, Bool: b} }

// StringValue wraps s as a string preference.
func StringValue(s string) PrefValue { return PrefValue{Kind: PrefString, Str: s} }

// String renders the payload without the kind tag.
func (v PrefValue) String() string {
	switch v.Kind {
	case PrefInt:
		return strconv.FormatInt(v.Int, 10)
	case PrefBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// ParsePrefValue rebuilds a value from its kind tag and rendered payload.
func ParsePrefValue(kind PrefKind, raw string) (PrefValue, error) {
	switch kind {
	case PrefInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return PrefValue{}, fmt.Errorf("parsing int preference %q: %w", raw, err)
		}
		return IntValue(n), nil
	case PrefBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return PrefValue{}, fmt.Errorf("parsing bool preference %q: %w", raw, err)
		}
		return BoolValue(b), nil
	case PrefString:
		return StringValue(raw), nil
	default:
		return PrefValue{}, fmt.Errorf("unknown preference kind %q", kind)
	}
}

// Preference is one (namespace, key) → value assignment.
type Preference struct {
	Namespace string    `json:"namespace" yaml:"namespace"`
	Key       string    `json:"key" yaml:"key"`
	Value     PrefValue `json:"value" yaml:"value"`
}
