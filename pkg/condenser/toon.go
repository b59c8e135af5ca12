// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package condenser

import (
	"strconv"
	"strings"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

// TOON serialization conventions:
//
//   - a scalar block is `key: value` lines separated by single newlines;
//   - a table block is `# name [annotations]`, one `|`-separated column
//     line, then one `|`-separated line per row;
//   - tuple cells render as `(v1,v2,…)` with no spaces;
//   - null renders as the empty cell; strings are unquoted unless they
//     contain `|`, a newline, or leading/trailing whitespace, in which case
//     they are JSON-quoted;
//   - floats use their shortest round-trip representation.
//
// Given the same input tree and heuristics the output is byte-identical.

// renderTable emits one table as TOON text, honoring the wide-table reshape
// when the preprocessor flagged it.
func renderTable(t *Table) string {
	switch t.wideFormat {
	case WideTableVertical:
		return renderVertical(t)
	case WideTableSplit:
		return renderSplit(t)
	default:
		return renderColumns(t, t.Columns, tableHeader(t))
	}
}

func tableHeader(t *Table) string {
	if len(t.anns) == 0 {
		return "# " + t.Name
	}
	texts := make([]string, 0, len(t.anns))
	for _, a := range t.anns {
		texts = append(texts, a.text)
	}
	return "# " + t.Name + " [" + strings.Join(texts, ", ") + "]"
}

func renderColumns(t *Table, cols []string, header string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for i, c := range cols {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(quoteCell(c))
	}
	for _, row := range t.Rows {
		b.WriteByte('\n')
		for i, c := range cols {
			if i > 0 {
				b.WriteByte('|')
			}
			b.WriteString(quoteCell(cellString(row, c)))
		}
	}
	return b.String()
}

// renderVertical emits one labeled block per row: the identity value as the
// label, then indented `col: value` lines for the remaining columns.
func renderVertical(t *Table) string {
	var b strings.Builder
	b.WriteString(tableHeader(t))
	for i, row := range t.Rows {
		label := strconv.Itoa(i)
		if t.IdentityColumn != "" {
			label = cellString(row, t.IdentityColumn)
		}
		b.WriteByte('\n')
		b.WriteString(quoteCell(label))
		b.WriteByte(':')
		for _, c := range t.Columns {
			if c == t.IdentityColumn {
				continue
			}
			b.WriteString("\n  ")
			b.WriteString(c)
			b.WriteString(": ")
			b.WriteString(quoteCell(cellString(row, c)))
		}
	}
	return b.String()
}

// renderSplit partitions columns into prefix groups and emits one sub-table
// per group, each repeating the identity column. A column without a dot is a
// group of its own. When every column falls into a single prefix group,
// fixed-size chunks are used instead so the reshape still yields more than
// one sub-table.
func renderSplit(t *Table) string {
	groups := splitColumnGroups(t)
	parts := make([]string, 0, len(groups))
	for i, g := range groups {
		cols := g.cols
		if t.IdentityColumn != "" {
			cols = append([]string{t.IdentityColumn}, cols...)
		}
		// Elision annotations describe the whole table; carry them on the
		// first part only.
		header := "# " + t.Name + "." + g.label
		if i == 0 && len(t.anns) > 0 {
			header += " [" + annotationText(t) + "]"
		}
		parts = append(parts, renderColumns(t, cols, header))
	}
	return strings.Join(parts, "\n\n")
}

func annotationText(t *Table) string {
	texts := make([]string, 0, len(t.anns))
	for _, a := range t.anns {
		texts = append(texts, a.text)
	}
	return strings.Join(texts, ", ")
}

type columnGroup struct {
	label string
	cols  []string
}

func splitColumnGroups(t *Table) []columnGroup {
	var order []string
	byPrefix := map[string][]string{}
	for _, c := range t.Columns {
		if c == t.IdentityColumn {
			continue
		}
		prefix := c
		if i := strings.Index(c, "."); i > 0 {
			prefix = c[:i]
		}
		if _, ok := byPrefix[prefix]; !ok {
			order = append(order, prefix)
		}
		byPrefix[prefix] = append(byPrefix[prefix], c)
	}

	if len(order) >= 2 {
		groups := make([]columnGroup, 0, len(order))
		for _, p := range order {
			groups = append(groups, columnGroup{label: p, cols: byPrefix[p]})
		}
		return groups
	}

	// Single prefix group: chunk instead.
	var flat []string
	for _, c := range t.Columns {
		if c != t.IdentityColumn {
			flat = append(flat, c)
		}
	}
	size := (len(flat) + 1) / 2
	if size < 1 {
		size = 1
	}
	var groups []columnGroup
	for i := 0; i < len(flat); i += size {
		end := i + size
		if end > len(flat) {
			end = len(flat)
		}
		groups = append(groups, columnGroup{
			label: strconv.Itoa(len(groups) + 1),
			cols:  flat[i:end],
		})
	}
	return groups
}

// quoteCell JSON-quotes a cell only when the raw text would break the table
// geometry: an embedded `|`, a newline, or leading/trailing whitespace.
func quoteCell(s string) string {
	if s == "" {
		return s
	}
	if strings.ContainsAny(s, "|\n") || s != strings.TrimSpace(s) {
		return strconv.Quote(s)
	}
	return s
}

// scalarLine renders one `key: value` line of a scalar block.
func scalarLine(key string, v value.Value) string {
	return key + ": " + quoteCell(value.FormatScalar(v))
}
