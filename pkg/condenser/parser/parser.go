// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

// Package parser turns raw tool-response text into a generic value tree.
//
// Parsing is attempted by an explicit ordered registry — JSON, then YAML,
// then CSV/TSV, then XML — and the first parser that accepts the input wins.
// The ordered-list-with-priority shape is deliberate: auto-detect order is
// load-bearing (JSON is strict and fast, YAML accepts almost anything), so it
// must stay obvious at a glance rather than hidden behind registration magic.
package parser

import (
	"fmt"
	"strings"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

// ParseError reports that a parser rejected the input, or that no parser in
// the registry accepted it.
type ParseError struct {
	Format  string
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Format, e.Message)
}

// Parser is a pluggable input parser. TryParse returns the decoded tree, or
// a *ParseError when the text is not this parser's format.
type Parser struct {
	// Name is the short identifier used in format hints and error messages.
	Name string

	// Priority is the auto-detect position; lower runs first.
	Priority int

	// TryParse decodes text into a value tree.
	TryParse func(text string) (value.Value, error)
}

// registry holds the built-in parsers in priority order.
var registry = []Parser{
	{Name: "json", Priority: 0, TryParse: tryJSON},
	{Name: "yaml", Priority: 1, TryParse: tryYAML},
	{Name: "csv", Priority: 2, TryParse: tryCSV},
	{Name: "xml", Priority: 3, TryParse: tryXML},
}

// hintAliases maps format hints to registry names. "tsv" forces the CSV
// parser with a tab delimiter.
var hintAliases = map[string]string{
	"json": "json",
	"yaml": "yaml",
	"csv":  "csv",
	"tsv":  "tsv",
	"xml":  "xml",
}

// Parse decodes text using the first matching parser in the registry.
//
// When hint names a known format, the matching parser is tried first; if it
// rejects the input the remaining parsers are tried in registry order.
// Unknown hints fall back to plain auto-detection.
//
// Returns the decoded tree and the name of the winning parser.
func Parse(text string, hint string) (value.Value, string, error) {
	hinted := ""
	if hint != "" {
		if canonical, ok := hintAliases[strings.ToLower(hint)]; ok {
			hinted = canonical
		}
	}

	if hinted == "tsv" {
		if v, err := tryTSV(text); err == nil {
			return v, "tsv", nil
		}
		hinted = "" // hint didn't match — fall through to full scan
	} else if hinted != "" {
		for _, p := range registry {
			if p.Name != hinted {
				continue
			}
			if v, err := p.TryParse(text); err == nil {
				return v, p.Name, nil
			}
			break // hint didn't match — fall through to full scan
		}
	}

	for _, p := range registry {
		if p.Name == hinted {
			continue
		}
		if v, err := p.TryParse(text); err == nil {
			return v, p.Name, nil
		}
	}

	names := make([]string, 0, len(registry))
	for _, p := range registry {
		names = append(names, p.Name)
	}
	return value.Null(), "", &ParseError{
		Format:  "auto",
		Message: "input is not valid " + strings.Join(names, ", "),
	}
}
