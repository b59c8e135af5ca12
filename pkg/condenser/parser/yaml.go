// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

// tryYAML parses a YAML document. Bare scalars and empty documents are
// rejected: YAML accepts nearly any text as a plain scalar, so only mappings
// and sequences count as a successful detection.
//
// The document is decoded via yaml.Node rather than into map[string]any so
// that mapping key order survives — the engine requires insertion-ordered
// objects for deterministic output.
func tryYAML(text string) (value.Value, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return value.Null(), &ParseError{Format: "yaml", Message: err.Error()}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return value.Null(), &ParseError{Format: "yaml", Message: "empty document"}
	}
	doc := root.Content[0]
	if k := resolveAlias(doc).Kind; k != yaml.MappingNode && k != yaml.SequenceNode {
		return value.Null(), &ParseError{Format: "yaml", Message: "top-level value is not a mapping or sequence"}
	}
	return fromYAMLNode(doc), nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func fromYAMLNode(n *yaml.Node) value.Value {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.MappingNode:
		fields := value.NewFields()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := resolveAlias(n.Content[i]).Value
			fields.Set(key, fromYAMLNode(n.Content[i+1]))
		}
		return value.ObjectOf(fields)
	case yaml.SequenceNode:
		arr := make([]value.Value, 0, len(n.Content))
		for _, el := range n.Content {
			arr = append(arr, fromYAMLNode(el))
		}
		return value.ArrayOf(arr)
	case yaml.ScalarNode:
		return yamlScalar(n)
	default:
		return value.Null()
	}
}

func yamlScalar(n *yaml.Node) value.Value {
	switch n.Tag {
	case "!!null":
		return value.Null()
	case "!!bool":
		if b, err := strconv.ParseBool(n.Value); err == nil {
			return value.BoolOf(b)
		}
		return value.BoolOf(n.Value == "true" || n.Value == "True" || n.Value == "TRUE")
	case "!!int":
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return value.IntOf(i)
		}
		return value.StringOf(n.Value)
	case "!!float":
		if f, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return value.FloatOf(f)
		}
		return value.StringOf(n.Value)
	default:
		return value.StringOf(n.Value)
	}
}
