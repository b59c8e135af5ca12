// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

// Package condenser implements the condensation engine: it turns a decoded
// tree of values into compact TOON text that keeps the facts an LLM needs
// while typically shrinking the token count by 55–85%.
package condenser

import (
	"fmt"
	"strconv"
	"strings"

	"dario.cat/mergo"
)

// WideTableFormat selects how tables past the wide-table threshold render.
type WideTableFormat string

// Wide-table layouts.
const (
	WideTableVertical WideTableFormat = "vertical"
	WideTableSplit    WideTableFormat = "split"
)

// Heuristics toggles the individual preprocessing heuristics. The option set
// is closed: unknown keys fail fast with UnknownHeuristicError listing the
// valid keys. Extending the set is a deliberate code change.
type Heuristics struct {
	// ElideAllZero drops columns whose every value is 0 or empty.
	ElideAllZero bool `json:"elide_all_zero" yaml:"elide_all_zero"`

	// ElideAllNull drops columns whose every value is null/empty.
	ElideAllNull bool `json:"elide_all_null" yaml:"elide_all_null"`

	// ElideTimestamps replaces columns of timestamps within a 60s window
	// with a single annotation carrying the earliest value.
	ElideTimestamps bool `json:"elide_timestamps" yaml:"elide_timestamps"`

	// ElideConstants drops columns with one distinct value, annotating the
	// value once in the table header.
	ElideConstants bool `json:"elide_constants" yaml:"elide_constants"`

	// GroupTuples fuses columns sharing a common dotted prefix into one
	// positional tuple column.
	GroupTuples bool `json:"group_tuples" yaml:"group_tuples"`

	// MaxTupleSize caps the number of fields fused into one tuple.
	MaxTupleSize int `json:"max_tuple_size" yaml:"max_tuple_size"`

	// ElideMostlyZeroPct drops columns where at least this fraction of
	// values are zero, listing outliers by identity.
	ElideMostlyZeroPct float64 `json:"elide_mostly_zero_pct" yaml:"elide_mostly_zero_pct"`

	// MaxTableColumns caps the column count when > 0, preserving the
	// identity column.
	MaxTableColumns int `json:"max_table_columns" yaml:"max_table_columns"`

	// WideTableThreshold is the column count at/above which wide-table
	// rendering kicks in; 0 disables it.
	WideTableThreshold int `json:"wide_table_threshold" yaml:"wide_table_threshold"`

	// WideTableFormat selects the wide-table layout.
	WideTableFormat WideTableFormat `json:"wide_table_format" yaml:"wide_table_format"`

	// PivotKeyValueArrays detects [{Key,Value}] arrays and pivots them onto
	// the parent row.
	PivotKeyValueArrays bool `json:"pivot_key_value_arrays" yaml:"pivot_key_value_arrays"`
}

// DefaultHeuristics returns the balanced defaults.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		ElideAllZero:        true,
		ElideAllNull:        true,
		ElideTimestamps:     true,
		ElideConstants:      true,
		GroupTuples:         true,
		MaxTupleSize:        4,
		ElideMostlyZeroPct:  1.0,
		MaxTableColumns:     0,
		WideTableThreshold:  0,
		WideTableFormat:     WideTableVertical,
		PivotKeyValueArrays: true,
	}
}

// heuristicKeys is the closed option set, in declaration order.
var heuristicKeys = []string{
	"elide_all_zero",
	"elide_all_null",
	"elide_timestamps",
	"elide_constants",
	"group_tuples",
	"max_tuple_size",
	"elide_mostly_zero_pct",
	"max_table_columns",
	"wide_table_threshold",
	"wide_table_format",
	"pivot_key_value_arrays",
}

// UnknownHeuristicError reports a heuristic key outside the closed set.
type UnknownHeuristicError struct {
	Key string
}

// Error implements the error interface.
func (e *UnknownHeuristicError) Error() string {
	return fmt.Sprintf("unknown heuristic %q (valid keys: %s)", e.Key, strings.Join(heuristicKeys, ", "))
}

// UnknownProfileError reports an unrecognized profile name.
type UnknownProfileError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown profile %q (valid profiles: %s)", e.Name, strings.Join(ProfileNames(), ", "))
}

// ProfileNames returns the valid profile names.
func ProfileNames() []string {
	return []string{"balanced", "compact", "precise"}
}

// ProfileHeuristics resolves a named profile to a full heuristics record.
// The empty name means balanced.
func ProfileHeuristics(name string) (Heuristics, error) {
	switch name {
	case "", "balanced":
		return DefaultHeuristics(), nil
	case "compact":
		h := DefaultHeuristics()
		h.ElideMostlyZeroPct = 0.9
		h.WideTableThreshold = 20
		h.WideTableFormat = WideTableSplit
		return h, nil
	case "precise":
		h := DefaultHeuristics()
		h.ElideAllZero = false
		h.ElideAllNull = false
		h.ElideTimestamps = false
		h.ElideConstants = false
		h.ElideMostlyZeroPct = 0
		h.GroupTuples = false
		return h, nil
	default:
		return Heuristics{}, &UnknownProfileError{Name: name}
	}
}

// ResolveHeuristics builds the effective heuristics for a tool: profile
// defaults, then each override layer deep-merged on top in order (server
// heuristics, then per-tool heuristics).
func ResolveHeuristics(profile string, layers ...map[string]any) (Heuristics, error) {
	h, err := ProfileHeuristics(profile)
	if err != nil {
		return Heuristics{}, err
	}

	merged := map[string]any{}
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		if err := mergo.Merge(&merged, layer, mergo.WithOverride); err != nil {
			return Heuristics{}, fmt.Errorf("merging heuristic overrides: %w", err)
		}
	}
	return h.With(merged)
}

// With returns a copy of h with the given overrides applied. Keys outside
// the closed option set yield UnknownHeuristicError.
func (h Heuristics) With(overrides map[string]any) (Heuristics, error) {
	for _, key := range heuristicKeys {
		raw, ok := overrides[key]
		if !ok {
			continue
		}
		if err := h.setOption(key, raw); err != nil {
			return Heuristics{}, err
		}
	}
	for key := range overrides {
		if !isHeuristicKey(key) {
			return Heuristics{}, &UnknownHeuristicError{Key: key}
		}
	}
	return h, nil
}

func isHeuristicKey(key string) bool {
	for _, k := range heuristicKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (h *Heuristics) setOption(key string, raw any) error {
	switch key {
	case "elide_all_zero":
		return setBool(&h.ElideAllZero, key, raw)
	case "elide_all_null":
		return setBool(&h.ElideAllNull, key, raw)
	case "elide_timestamps":
		return setBool(&h.ElideTimestamps, key, raw)
	case "elide_constants":
		return setBool(&h.ElideConstants, key, raw)
	case "group_tuples":
		return setBool(&h.GroupTuples, key, raw)
	case "max_tuple_size":
		return setInt(&h.MaxTupleSize, key, raw)
	case "elide_mostly_zero_pct":
		return setFloat(&h.ElideMostlyZeroPct, key, raw)
	case "max_table_columns":
		return setInt(&h.MaxTableColumns, key, raw)
	case "wide_table_threshold":
		return setInt(&h.WideTableThreshold, key, raw)
	case "wide_table_format":
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("heuristic %q: expected string, got %T", key, raw)
		}
		switch WideTableFormat(s) {
		case WideTableVertical, WideTableSplit:
			h.WideTableFormat = WideTableFormat(s)
			return nil
		default:
			return fmt.Errorf("heuristic %q: expected %q or %q, got %q", key, WideTableVertical, WideTableSplit, s)
		}
	case "pivot_key_value_arrays":
		return setBool(&h.PivotKeyValueArrays, key, raw)
	default:
		return &UnknownHeuristicError{Key: key}
	}
}

func setBool(dst *bool, key string, raw any) error {
	switch t := raw.(type) {
	case bool:
		*dst = t
	case int:
		*dst = t != 0
	case int64:
		*dst = t != 0
	case float64:
		*dst = t != 0
	case string:
		*dst = parseLooseBool(t)
	default:
		return fmt.Errorf("heuristic %q: expected bool, got %T", key, raw)
	}
	return nil
}

func setInt(dst *int, key string, raw any) error {
	switch t := raw.(type) {
	case int:
		*dst = t
	case int64:
		*dst = int(t)
	case float64:
		*dst = int(t)
	case string:
		i, err := strconv.Atoi(t)
		if err != nil {
			return fmt.Errorf("heuristic %q: expected int, got %q", key, t)
		}
		*dst = i
	default:
		return fmt.Errorf("heuristic %q: expected int, got %T", key, raw)
	}
	return nil
}

func setFloat(dst *float64, key string, raw any) error {
	switch t := raw.(type) {
	case float64:
		*dst = t
	case int:
		*dst = float64(t)
	case int64:
		*dst = float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return fmt.Errorf("heuristic %q: expected float, got %q", key, t)
		}
		*dst = f
	default:
		return fmt.Errorf("heuristic %q: expected float, got %T", key, raw)
	}
	return nil
}

// parseLooseBool applies the env-surface bool convention: "false", "0",
// and "no" (case-insensitive) are false, everything else is true.
func parseLooseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "false", "0", "no":
		return false
	default:
		return true
	}
}
