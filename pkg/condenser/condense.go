// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package condenser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
	"github.com/teriyakichild/mcp-condenser/pkg/logger"
)

// CondenseValue condenses a pre-parsed tree with the given heuristics. Used
// by the CLI and tests; the proxy path goes through CondenseText.
func CondenseValue(tree value.Value, h Heuristics) string {
	return condenseTree(tree, &h)
}

// EncodeTOON encodes a tree as TOON text with no semantic preprocessing:
// tables render with their full column set and nothing is elided, pivoted,
// grouped, or reshaped.
func EncodeTOON(tree value.Value) string {
	return condenseTree(tree, nil)
}

var (
	condenseJSONDeprecated sync.Once
	toonEncodeDeprecated   sync.Once
)

// CondenseJSON condenses a pre-parsed tree.
//
// Deprecated: use CondenseValue. Kept as a forwarding alias for callers of
// the original API.
func CondenseJSON(tree value.Value, h Heuristics) string {
	condenseJSONDeprecated.Do(func() {
		logger.Warn("CondenseJSON is deprecated; use CondenseValue")
	})
	return CondenseValue(tree, h)
}

// TOONEncodeJSON encodes a tree as raw TOON.
//
// Deprecated: use EncodeTOON. Kept as a forwarding alias for callers of the
// original API.
func TOONEncodeJSON(tree value.Value) string {
	toonEncodeDeprecated.Do(func() {
		logger.Warn("TOONEncodeJSON is deprecated; use EncodeTOON")
	})
	return EncodeTOON(tree)
}

// block is one rendered output unit. Consecutive scalar lines join with
// single newlines; section boundaries get a blank line.
type block struct {
	text       string
	scalarLine bool
}

// condenseTree renders a full tree. A nil heuristics pointer selects raw
// TOON mode.
func condenseTree(root value.Value, h *Heuristics) string {
	var blocks []block
	switch root.Kind {
	case value.KindObject:
		blocks = condenseObject("", root.Obj, h, 0)
	case value.KindArray:
		blocks = condenseArray("root", root.Arr, h, 0)
	default:
		blocks = []block{{text: scalarLine("root", root), scalarLine: true}}
	}
	return joinBlocks(blocks)
}

// condenseObject flattens an object and renders its scalar fields as one
// block, then each array field in source order.
func condenseObject(name string, obj *value.Fields, h *Heuristics, depth int) []block {
	flat := flattenFields(obj)

	var scalarLines []string
	type arrayField struct {
		key string
		arr []value.Value
	}
	var arrays []arrayField

	for _, k := range flat.Keys() {
		v, _ := flat.Get(k)
		key := k
		if name != "" {
			key = name + "." + k
		}
		if v.Kind == value.KindArray {
			arrays = append(arrays, arrayField{key: key, arr: v.Arr})
			continue
		}
		scalarLines = append(scalarLines, scalarLine(key, v))
	}

	var blocks []block
	if len(scalarLines) > 0 {
		blocks = append(blocks, block{
			text:       strings.Join(scalarLines, "\n"),
			scalarLine: len(scalarLines) == 1,
		})
	}
	for _, af := range arrays {
		blocks = append(blocks, condenseArray(af.key, af.arr, h, depth+1)...)
	}
	return blocks
}

// condenseArray renders an array: tables go through the preprocessing
// pipeline (with sub-table extraction), arrays of objects that don't
// tabulate render per-item, and anything else falls back to a JSON line.
func condenseArray(name string, arr []value.Value, h *Heuristics, depth int) []block {
	if depth >= maxFlattenDepth {
		return []block{{text: name + ": " + value.EncodeJSON(value.ArrayOf(arr)), scalarLine: true}}
	}
	if isTableArray(arr) {
		p := buildTable(name, arr, h, h != nil)
		blocks := []block{{text: renderTable(p.table)}}
		for _, sub := range p.subTables {
			blocks = append(blocks, block{text: renderTable(sub)})
		}
		return blocks
	}
	if len(arr) > 0 && arr[0].Kind == value.KindObject {
		var blocks []block
		for i, el := range arr {
			if el.Kind == value.KindObject {
				blocks = append(blocks, condenseObject(fmt.Sprintf("%s[%d]", name, i), el.Obj, h, depth+1)...)
			} else {
				blocks = append(blocks, block{
					text:       fmt.Sprintf("%s[%d]: %s", name, i, value.EncodeJSON(el)),
					scalarLine: true,
				})
			}
		}
		return blocks
	}
	return []block{{text: name + ": " + value.EncodeJSON(value.ArrayOf(arr)), scalarLine: true}}
}

// joinBlocks joins rendered blocks: runs of scalar lines collapse with
// single newlines, everything else is separated by a blank line.
func joinBlocks(blocks []block) string {
	if len(blocks) == 0 {
		return ""
	}
	var parts []string
	var scalarRun []string
	flush := func() {
		if len(scalarRun) > 0 {
			parts = append(parts, strings.Join(scalarRun, "\n"))
			scalarRun = nil
		}
	}
	for _, b := range blocks {
		if b.scalarLine {
			scalarRun = append(scalarRun, b.text)
			continue
		}
		flush()
		parts = append(parts, b.text)
	}
	flush()
	return strings.Join(parts, "\n\n")
}
