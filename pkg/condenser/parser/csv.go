// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

// sniffDelimiters are the candidate cell separators, in preference order.
var sniffDelimiters = []rune{',', '\t', '|', ';'}

// sniffSampleSize bounds the text examined during dialect sniffing.
const sniffSampleSize = 8192

// tryCSV detects and parses delimited text into an array of objects.
//
// Detection requires a header plus at least one data row, at least two
// columns, and a consistent column count between the header and the first
// data row. Cells are whitespace-trimmed; numeric cells are promoted to
// Int/Float and empty cells to Null.
func tryCSV(text string) (value.Value, error) {
	delim, err := sniffDelimiter(text)
	if err != nil {
		return value.Null(), err
	}
	return parseDelimited(text, delim)
}

// tryTSV parses with a forced tab delimiter, used by the "tsv" format hint.
func tryTSV(text string) (value.Value, error) {
	return parseDelimited(text, '\t')
}

func sniffDelimiter(text string) (rune, error) {
	sample := text
	if len(sample) > sniffSampleSize {
		sample = sample[:sniffSampleSize]
	}
	lines := strings.Split(strings.TrimSpace(sample), "\n")
	if len(lines) < 2 {
		return 0, &ParseError{Format: "csv", Message: "need a header and at least one data row"}
	}

	best := rune(0)
	bestCols := 1
	for _, d := range sniffDelimiters {
		header := splitLine(lines[0], d)
		data := splitLine(lines[1], d)
		if len(header) >= 2 && len(header) == len(data) && len(header) > bestCols {
			best = d
			bestCols = len(header)
		}
	}
	if best == 0 {
		return 0, &ParseError{Format: "csv", Message: "no consistent delimiter detected"}
	}
	return best, nil
}

func splitLine(line string, delim rune) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	rec, err := r.Read()
	if err != nil {
		return nil
	}
	return rec
}

func parseDelimited(text string, delim rune) (value.Value, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(text)))
	r.Comma = delim
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return value.Null(), &ParseError{Format: "csv", Message: err.Error()}
	}
	if len(records) < 2 {
		return value.Null(), &ParseError{Format: "csv", Message: "need a header and at least one data row"}
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	if len(header) < 2 {
		return value.Null(), &ParseError{Format: "csv", Message: "need at least 2 columns"}
	}

	rows := make([]value.Value, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := value.NewFields()
		for i, col := range header {
			if i < len(rec) {
				row.Set(col, coerceCell(strings.TrimSpace(rec[i])))
			} else {
				row.Set(col, value.Null())
			}
		}
		rows = append(rows, value.ObjectOf(row))
	}
	return value.ArrayOf(rows), nil
}

// coerceCell infers cell types: empty → null, then int, then float, then
// the trimmed string as-is.
func coerceCell(cell string) value.Value {
	if cell == "" {
		return value.Null()
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return value.IntOf(i)
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return value.FloatOf(f)
	}
	return value.StringOf(cell)
}
