// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/clbanning/mxj/v2"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

var mxjSetup sync.Once

// tryXML parses an XML document into an object tree.
//
// Attributes become keys prefixed with "@"; text content at a leaf becomes
// the value, with mixed attr+text nodes exposing text under "#text";
// repeated child element names collapse into an array. Numeric and
// true|false text is coerced. All of this is mxj's native mapping, which is
// why the conversion is delegated to it.
//
// mxj decodes into Go maps, so sibling order within an element is not
// preserved; keys are sorted during conversion to keep output deterministic.
// Attribute order fidelity is an explicit non-goal.
func tryXML(text string) (value.Value, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed[0] != '<' {
		return value.Null(), &ParseError{Format: "xml", Message: "input does not start with an element"}
	}

	mxjSetup.Do(func() {
		mxj.SetAttrPrefix("@")
	})

	m, err := mxj.NewMapXml([]byte(trimmed), true)
	if err != nil {
		return value.Null(), &ParseError{Format: "xml", Message: err.Error()}
	}
	return fromAny(map[string]interface{}(m)), nil
}

// coerceText applies the XML text coercion rules: empty becomes null, text
// that fully matches an integer or floating literal is promoted, and
// true|false becomes a bool.
func coerceText(s string) value.Value {
	switch s {
	case "":
		return value.Null()
	case "true":
		return value.BoolOf(true)
	case "false":
		return value.BoolOf(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.IntOf(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.FloatOf(f)
	}
	return value.StringOf(s)
}

// fromAny converts mxj's interface tree into a value tree. Map keys are
// sorted for determinism; empty strings become null per the coercion rules.
func fromAny(v interface{}) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.BoolOf(t)
	case int:
		return value.IntOf(int64(t))
	case int64:
		return value.IntOf(t)
	case float64:
		return value.FloatOf(t)
	case string:
		return coerceText(t)
	case []interface{}:
		arr := make([]value.Value, 0, len(t))
		for _, el := range t {
			arr = append(arr, fromAny(el))
		}
		return value.ArrayOf(arr)
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := value.NewFields()
		for _, k := range keys {
			fields.Set(k, fromAny(t[k]))
		}
		return value.ObjectOf(fields)
	default:
		return value.Null()
	}
}
