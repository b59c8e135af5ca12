// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package condenser

import (
	"strings"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

// maxFlattenDepth bounds nested-object flattening. Sub-trees past the limit
// render as raw JSON text instead of recursing further.
const maxFlattenDepth = 64

// Table is the derived structure for an array of objects that the engine
// renders as a tabular block. Columns are dot-path keys; rows are keyed by
// exactly the column set after preprocessing. Annotations record elided
// constants and outlier notes against column headers.
type Table struct {
	Name           string
	Columns        []string
	Rows           []*value.Fields
	IdentityColumn string

	anns       []annotation
	wideFormat WideTableFormat
}

// annotation is one rendered header note. Key is the column it concerns (or
// a group tag such as "all-zero") so that every note stays attributable.
type annotation struct {
	key  string
	text string
}

func (t *Table) annotate(key, text string) {
	t.anns = append(t.anns, annotation{key: key, text: text})
}

// Annotations returns the header notes keyed by column or group tag.
func (t *Table) Annotations() map[string]string {
	out := make(map[string]string, len(t.anns))
	for _, a := range t.anns {
		out[a.key] = a.text
	}
	return out
}

// flattenFields flattens a nested object into dot-notation keys. Arrays are
// kept as-is under their flattened key. Past maxFlattenDepth the remaining
// sub-tree is rendered as compact JSON text.
func flattenFields(obj *value.Fields) *value.Fields {
	out := value.NewFields()
	flattenInto(out, "", obj, 0)
	return out
}

func flattenInto(dst *value.Fields, prefix string, obj *value.Fields, depth int) {
	for _, k := range obj.Keys() {
		v, _ := obj.Get(k)
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if v.Kind == value.KindObject {
			if depth+1 >= maxFlattenDepth {
				dst.Set(key, value.StringOf(value.EncodeJSON(v)))
				continue
			}
			flattenInto(dst, key, v.Obj, depth+1)
			continue
		}
		dst.Set(key, v)
	}
}

// isTableArray reports whether an array qualifies as a table: every element
// is an object and the union of flattened keys yields at least two columns
// once list-valued sub-fields are excluded, with at least one data row.
func isTableArray(arr []value.Value) bool {
	if len(arr) == 0 {
		return false
	}
	for _, el := range arr {
		if el.Kind != value.KindObject {
			return false
		}
	}
	cols := 0
	seen := map[string]bool{}
	for _, el := range arr {
		flat := flattenFields(el.Obj)
		for _, k := range flat.Keys() {
			v, _ := flat.Get(k)
			if v.Kind == value.KindArray || seen[k] {
				continue
			}
			seen[k] = true
			cols++
		}
	}
	return cols >= 2
}

// unionColumns returns the ordered union of row keys. Array-valued fields
// are skipped unless includeArrays is set (raw TOON encoding keeps them as
// JSON-text cells).
func unionColumns(rows []*value.Fields, includeArrays bool) []string {
	var cols []string
	seen := map[string]bool{}
	for _, row := range rows {
		for _, k := range row.Keys() {
			if seen[k] {
				continue
			}
			v, _ := row.Get(k)
			if v.Kind == value.KindArray && !includeArrays {
				continue
			}
			seen[k] = true
			cols = append(cols, k)
		}
	}
	return cols
}

// cellString renders a row's cell for column analysis; absent keys count as
// null/empty.
func cellString(row *value.Fields, col string) string {
	v, ok := row.Get(col)
	if !ok {
		return ""
	}
	return value.FormatScalar(v)
}

// cardinality counts distinct non-empty formatted values in a column.
func cardinality(rows []*value.Fields, col string) int {
	distinct := map[string]bool{}
	for _, row := range rows {
		s := cellString(row, col)
		if s != "" {
			distinct[s] = true
		}
	}
	return len(distinct)
}

// identityKeywords is the ordered keyword list for identity-column picking.
var identityKeywords = []string{"name", "id", "key", "host", "pod", "node", "instance"}

// pickIdentityColumn chooses the row-label column. Keywords are walked in
// order, exact last-segment matches before suffix matches; within a keyword
// the candidate with the highest distinct-value cardinality wins, ties
// broken by first-seen order. With no keyword match, the first column whose
// cardinality equals the row count is used; otherwise there is no identity
// column.
func pickIdentityColumn(cols []string, rows []*value.Fields) string {
	lastSegment := func(col string) string {
		if i := strings.LastIndex(col, "."); i >= 0 {
			return strings.ToLower(col[i+1:])
		}
		return strings.ToLower(col)
	}

	pickBest := func(cands []string) string {
		best := ""
		bestCard := -1
		for _, c := range cands {
			card := cardinality(rows, c)
			if card > bestCard {
				best = c
				bestCard = card
			}
		}
		return best
	}

	for _, kw := range identityKeywords {
		var cands []string
		for _, c := range cols {
			if lastSegment(c) == kw {
				cands = append(cands, c)
			}
		}
		if len(cands) > 0 {
			return pickBest(cands)
		}
	}
	for _, kw := range identityKeywords {
		var cands []string
		for _, c := range cols {
			seg := lastSegment(c)
			if seg != kw && strings.HasSuffix(seg, kw) {
				cands = append(cands, c)
			}
		}
		if len(cands) > 0 {
			return pickBest(cands)
		}
	}
	for _, c := range cols {
		if cardinality(rows, c) == len(rows) {
			return c
		}
	}
	return ""
}
