// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package condenser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

// timestampClusterWindow is the min-max span at or under which a timestamp
// column collapses into a single annotation.
const timestampClusterWindow = 60 * time.Second

// maxOutliersListed caps how many per-row outliers an elision annotation
// names before trailing "…".
const maxOutliersListed = 5

// processedTable is a preprocessed table plus any sub-tables lifted out of
// its rows. Extraction is single-level: sub-tables never extract their own
// nested arrays.
type processedTable struct {
	table     *Table
	subTables []*Table
}

// buildTable runs the preprocessing pipeline over an array of objects.
// With h == nil every semantic step is skipped and the table is a direct
// tabular encoding of the flattened rows (raw TOON mode). The step order is
// fixed; later steps observe the state left by earlier ones.
func buildTable(name string, arr []value.Value, h *Heuristics, extract bool) *processedTable {
	rows := make([]*value.Fields, 0, len(arr))
	for _, el := range arr {
		rows = append(rows, flattenFields(el.Obj))
	}

	if h == nil {
		cols := unionColumns(rows, true)
		t := &Table{Name: name, Rows: rows}
		t.IdentityColumn = pickIdentityColumn(cols, rows)
		cols = identityFirst(cols, t.IdentityColumn)
		t.Columns = cols
		t.Rows = normalizeRows(rows, singleSourceColumns(cols))
		return &processedTable{table: t}
	}

	if h.PivotKeyValueArrays {
		pivotKeyValueArrays(rows)
	}
	flattenPositional(rows)

	cols := unionColumns(rows, false)
	idCol := pickIdentityColumn(cols, rows)
	cols = identityFirst(cols, idCol)

	t := &Table{Name: name, IdentityColumn: idCol}

	var subs []*Table
	if extract {
		subs = extractSubTables(name, rows, idCol, h)
	}

	stats := analyzeColumns(rows, cols)
	elided := map[string]bool{}

	// Elide constants. All-zero and all-null columns are left for their own
	// steps so the annotation names the right reason.
	if h.ElideConstants {
		for _, c := range cols {
			if c == idCol || elided[c] {
				continue
			}
			st := stats[c]
			if st.isConst && !st.allZero && !st.allNull {
				t.annotate(c, c+"="+st.constVal)
				elided[c] = true
			}
		}
	}

	// Elide all-zero and all-null columns, each as one grouped annotation.
	if h.ElideAllZero {
		var zeroed []string
		for _, c := range cols {
			if c != idCol && !elided[c] && stats[c].allZero {
				zeroed = append(zeroed, c)
				elided[c] = true
			}
		}
		if len(zeroed) > 0 {
			t.annotate("all-zero", "all-zero: ["+strings.Join(zeroed, ", ")+"]")
		}
	}
	if h.ElideAllNull {
		var nulled []string
		for _, c := range cols {
			if c != idCol && !elided[c] && stats[c].allNull {
				nulled = append(nulled, c)
				elided[c] = true
			}
		}
		if len(nulled) > 0 {
			t.annotate("all-null", "all-null: ["+strings.Join(nulled, ", ")+"]")
		}
	}

	// Elide mostly-zero columns, citing outliers by identity.
	if h.ElideMostlyZeroPct > 0 {
		for _, c := range cols {
			if c == idCol || elided[c] {
				continue
			}
			st := stats[c]
			if len(st.formatted) == 0 {
				continue
			}
			zeros := 0
			for _, v := range st.formatted {
				if v == "" || v == "0" {
					zeros++
				}
			}
			if float64(zeros)/float64(len(st.formatted)) < h.ElideMostlyZeroPct {
				continue
			}
			var outliers []string
			for i, v := range st.formatted {
				if v == "" || v == "0" {
					continue
				}
				label := strconv.Itoa(i)
				if idCol != "" {
					label = cellString(rows[i], idCol)
				}
				outliers = append(outliers, label+"="+v)
			}
			text := c + "~0"
			if len(outliers) > 0 {
				text += " [" + joinCapped(outliers, maxOutliersListed) + "]"
			}
			t.annotate(c, text)
			elided[c] = true
		}
	}

	// Cluster timestamps: a column of instants within the window collapses
	// to its earliest value.
	if h.ElideTimestamps {
		for _, c := range cols {
			if c == idCol || elided[c] {
				continue
			}
			st := stats[c]
			if st.tsClustered {
				t.annotate(c, c+"~"+st.tsEarliest)
				elided[c] = true
			}
		}
	}

	remaining := make([]string, 0, len(cols))
	for _, c := range cols {
		if !elided[c] {
			remaining = append(remaining, c)
		}
	}

	var final []finalColumn
	if h.GroupTuples {
		final = groupTuples(remaining, idCol, stats, h.MaxTupleSize)
	} else {
		final = singleSourceColumns(remaining)
	}

	// Cap table width. The identity column sits at position 0 so it
	// survives the cap naturally.
	if h.MaxTableColumns > 0 && len(final) > h.MaxTableColumns {
		overflow := final[h.MaxTableColumns:]
		names := make([]string, 0, len(overflow))
		for _, fc := range overflow {
			names = append(names, fc.header)
		}
		t.annotate("+columns", fmt.Sprintf("+%d columns: [%s]", len(names), joinCapped(names, maxOutliersListed)))
		final = final[:h.MaxTableColumns]
	}

	t.Columns = make([]string, 0, len(final))
	for _, fc := range final {
		t.Columns = append(t.Columns, fc.header)
	}
	t.Rows = normalizeRows(rows, final)

	if h.WideTableThreshold > 0 && len(t.Columns) >= h.WideTableThreshold {
		t.wideFormat = h.WideTableFormat
		if t.wideFormat == "" {
			t.wideFormat = WideTableVertical
		}
	}

	return &processedTable{table: t, subTables: subs}
}

// finalColumn maps a rendered header to its source columns; tuples have
// several sources, plain columns exactly one.
type finalColumn struct {
	header  string
	sources []string
}

func singleSourceColumns(cols []string) []finalColumn {
	out := make([]finalColumn, 0, len(cols))
	for _, c := range cols {
		out = append(out, finalColumn{header: c, sources: []string{c}})
	}
	return out
}

// normalizeRows rebuilds every row keyed by exactly the final column set,
// filling absent cells with null and rendering tuple cells positionally.
func normalizeRows(rows []*value.Fields, final []finalColumn) []*value.Fields {
	out := make([]*value.Fields, 0, len(rows))
	for _, row := range rows {
		nr := value.NewFields()
		for _, fc := range final {
			if len(fc.sources) == 1 {
				v, ok := row.Get(fc.sources[0])
				if !ok {
					v = value.Null()
				}
				nr.Set(fc.header, v)
				continue
			}
			cells := make([]string, 0, len(fc.sources))
			for _, src := range fc.sources {
				cells = append(cells, cellString(row, src))
			}
			nr.Set(fc.header, value.StringOf("("+strings.Join(cells, ",")+")"))
		}
		out = append(out, nr)
	}
	return out
}

func identityFirst(cols []string, idCol string) []string {
	if idCol == "" {
		return cols
	}
	out := make([]string, 0, len(cols))
	out = append(out, idCol)
	for _, c := range cols {
		if c != idCol {
			out = append(out, c)
		}
	}
	return out
}

func joinCapped(items []string, limit int) string {
	if len(items) > limit {
		items = append(items[:limit:limit], "…")
	}
	return strings.Join(items, ", ")
}

// columnStats is the per-column analysis the elision steps consume.
type columnStats struct {
	formatted   []string
	allZero     bool
	allNull     bool
	isConst     bool
	constVal    string
	tsClustered bool
	tsEarliest  string
}

func analyzeColumns(rows []*value.Fields, cols []string) map[string]*columnStats {
	stats := make(map[string]*columnStats, len(cols))
	for _, c := range cols {
		st := &columnStats{formatted: make([]string, 0, len(rows))}
		hasZero := false
		nonNull := map[string]bool{}
		firstNonNull := ""
		for _, row := range rows {
			s := cellString(row, c)
			st.formatted = append(st.formatted, s)
			if s == "0" {
				hasZero = true
			}
			if s != "" {
				if len(nonNull) == 0 {
					firstNonNull = s
				}
				nonNull[s] = true
			}
		}
		st.allNull = len(nonNull) == 0
		st.allZero = !st.allNull && hasZero && func() bool {
			for _, s := range st.formatted {
				if s != "" && s != "0" {
					return false
				}
			}
			return true
		}()
		st.isConst = len(nonNull) == 1
		st.constVal = firstNonNull

		st.tsClustered, st.tsEarliest = timestampCluster(st.formatted)
		stats[c] = st
	}
	return stats
}

// timestampCluster reports whether every non-null value is an absolute
// instant with a min-max span inside the cluster window, and returns the
// earliest value as the representative.
func timestampCluster(formatted []string) (bool, string) {
	var earliest, latest time.Time
	earliestRaw := ""
	seen := false
	for _, s := range formatted {
		if s == "" {
			continue
		}
		ts, ok := parseInstant(s)
		if !ok {
			return false, ""
		}
		if !seen || ts.Before(earliest) {
			earliest = ts
			earliestRaw = s
		}
		if !seen || ts.After(latest) {
			latest = ts
		}
		seen = true
	}
	if !seen {
		return false, ""
	}
	if latest.Sub(earliest) > timestampClusterWindow {
		return false, ""
	}
	return true, earliestRaw
}

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseInstant(s string) (time.Time, bool) {
	if len(s) < 19 || s[4] != '-' || s[7] != '-' {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// pivotKeyValueArrays rewrites AWS-tag-shaped list fields in place: any list
// whose every element is an object with exactly {Key,Value} pivots into
// `<field>.<Key-value>` columns carrying the Value.
func pivotKeyValueArrays(rows []*value.Fields) {
	for _, row := range rows {
		for _, field := range append([]string(nil), row.Keys()...) {
			v, _ := row.Get(field)
			if v.Kind != value.KindArray || len(v.Arr) == 0 {
				continue
			}
			pairs := make([][2]value.Value, 0, len(v.Arr))
			ok := true
			for _, el := range v.Arr {
				if el.Kind != value.KindObject || el.Obj.Len() != 2 {
					ok = false
					break
				}
				key, hasKey := el.Obj.Get("Key")
				val, hasVal := el.Obj.Get("Value")
				if !hasKey || !hasVal || key.Kind != value.KindString {
					ok = false
					break
				}
				pairs = append(pairs, [2]value.Value{key, val})
			}
			if !ok {
				continue
			}
			row.Delete(field)
			for _, p := range pairs {
				row.Set(field+"."+p[0].Str, p[1])
			}
		}
	}
}

// flattenPositional flattens the array fields that cannot pivot or extract:
// arrays of scalars get numeric indices (`key.0`, `key.1`, …), and a
// single-object array flattens through index 0 (`key.0.sub`). Arrays with
// two or more object elements are left in place as sub-table candidates.
func flattenPositional(rows []*value.Fields) {
	for _, row := range rows {
		for _, field := range append([]string(nil), row.Keys()...) {
			v, _ := row.Get(field)
			if v.Kind != value.KindArray || len(v.Arr) == 0 {
				continue
			}
			allScalar := true
			for _, el := range v.Arr {
				if el.Kind == value.KindArray || el.Kind == value.KindObject {
					allScalar = false
					break
				}
			}
			switch {
			case allScalar:
				row.Delete(field)
				for i, el := range v.Arr {
					row.Set(field+"."+strconv.Itoa(i), el)
				}
			case len(v.Arr) == 1 && v.Arr[0].Kind == value.KindObject:
				row.Delete(field)
				flat := flattenFields(v.Arr[0].Obj)
				for _, k := range flat.Keys() {
					fv, _ := flat.Get(k)
					row.Set(field+".0."+k, fv)
				}
			}
		}
	}
}

// groupTuples fuses sibling columns that share a dotted prefix and carry
// numeric or short-string values into one positional tuple column named
// `<prefix>.(<f1>,<f2>,…)`. The identity column is never grouped; groups
// larger than maxSize are not formed.
func groupTuples(cols []string, idCol string, stats map[string]*columnStats, maxSize int) []finalColumn {
	byPrefix := map[string][]string{}
	for _, c := range cols {
		if c == idCol {
			continue
		}
		i := strings.LastIndex(c, ".")
		if i <= 0 {
			continue
		}
		prefix := c[:i]
		byPrefix[prefix] = append(byPrefix[prefix], c)
	}

	// fused maps member columns to their tuple header; tuples maps each
	// tuple header to its member columns.
	fused := map[string]string{}
	tuples := map[string][]string{}
	for prefix, members := range byPrefix {
		if len(members) < 3 || len(members) > maxSize {
			continue
		}
		eligible := true
		for _, m := range members {
			if !tupleSafe(stats[m]) {
				eligible = false
				break
			}
		}
		if !eligible {
			continue
		}
		leaves := make([]string, 0, len(members))
		for _, m := range members {
			leaves = append(leaves, m[strings.LastIndex(m, ".")+1:])
		}
		header := prefix + ".(" + strings.Join(leaves, ",") + ")"
		tuples[header] = members
		for _, m := range members {
			fused[m] = header
		}
	}

	var out []finalColumn
	emitted := map[string]bool{}
	for _, c := range cols {
		header, ok := fused[c]
		if !ok {
			out = append(out, finalColumn{header: c, sources: []string{c}})
			continue
		}
		if !emitted[header] {
			out = append(out, finalColumn{header: header, sources: tuples[header]})
			emitted[header] = true
		}
	}
	return out
}

// tupleSafe reports whether a column's values can sit inside a positional
// tuple cell: empty, numeric, or a short token with no tuple delimiters.
func tupleSafe(st *columnStats) bool {
	if st == nil || st.tsClustered {
		return false
	}
	for _, s := range st.formatted {
		if s == "" {
			continue
		}
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			continue
		}
		if len(s) > 16 || strings.ContainsAny(s, ",()|\n") {
			return false
		}
	}
	return true
}

// extractSubTables lifts homogeneous array-of-object row fields out as
// sub-tables back-referenced by the parent identity. Extraction is
// single-level by design; what a sub-table's own rows hold as nested arrays
// is not extracted again.
func extractSubTables(name string, rows []*value.Fields, idCol string, h *Heuristics) []*Table {
	fieldSet := map[string]bool{}
	for _, row := range rows {
		for _, k := range row.Keys() {
			v, _ := row.Get(k)
			if v.Kind == value.KindArray {
				fieldSet[k] = true
			}
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var subs []*Table
	for _, field := range fields {
		var items []value.Value
		for i, row := range rows {
			v, ok := row.Get(field)
			if !ok || v.Kind != value.KindArray {
				continue
			}
			parentRef := strconv.Itoa(i)
			if idCol != "" {
				parentRef = cellString(row, idCol)
			}
			for _, el := range v.Arr {
				if el.Kind != value.KindObject {
					continue
				}
				tagged := value.NewFields()
				tagged.Set("_parent."+parentLabel(idCol), value.StringOf(parentRef))
				flat := flattenFields(el.Obj)
				for _, k := range flat.Keys() {
					fv, _ := flat.Get(k)
					tagged.Set(k, fv)
				}
				items = append(items, value.ObjectOf(tagged))
			}
		}
		if len(items) < 2 || !homogeneousItems(items) {
			continue
		}
		sub := buildTable(name+"."+field, items, h, false)
		subs = append(subs, sub.table)
	}
	return subs
}

func parentLabel(idCol string) string {
	if idCol == "" {
		return "row"
	}
	return idCol
}

// homogeneousItems requires at least two scalar keys shared by every item.
func homogeneousItems(items []value.Value) bool {
	common := map[string]bool{}
	for i, it := range items {
		keys := map[string]bool{}
		for _, k := range it.Obj.Keys() {
			v, _ := it.Obj.Get(k)
			if v.Kind != value.KindArray {
				keys[k] = true
			}
		}
		if i == 0 {
			common = keys
			continue
		}
		for k := range common {
			if !keys[k] {
				delete(common, k)
			}
		}
	}
	return len(common) >= 2
}
