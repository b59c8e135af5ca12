// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

// tryJSON parses strict JSON. Bare scalars (a number or quoted string alone)
// are rejected so that they fall through to YAML, matching the registry's
// auto-detect contract: only objects and arrays are meaningful structured
// data at the top level.
//
// gjson is used for both the validity gate and the tree walk because its
// iteration preserves document order, which the engine's determinism
// guarantee depends on.
func tryJSON(text string) (value.Value, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return value.Null(), &ParseError{Format: "json", Message: "empty input"}
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return value.Null(), &ParseError{Format: "json", Message: "top-level value is not an object or array"}
	}
	if !gjson.Valid(trimmed) {
		return value.Null(), &ParseError{Format: "json", Message: "malformed JSON"}
	}
	return fromGJSON(gjson.Parse(trimmed)), nil
}

func fromGJSON(r gjson.Result) value.Value {
	switch {
	case r.IsObject():
		fields := value.NewFields()
		r.ForEach(func(key, val gjson.Result) bool {
			fields.Set(key.String(), fromGJSON(val))
			return true
		})
		return value.ObjectOf(fields)
	case r.IsArray():
		var arr []value.Value
		r.ForEach(func(_, val gjson.Result) bool {
			arr = append(arr, fromGJSON(val))
			return true
		})
		return value.ArrayOf(arr)
	case r.Type == gjson.Number:
		return numberFromRaw(r.Raw, r.Num)
	case r.Type == gjson.String:
		return value.StringOf(r.Str)
	case r.Type == gjson.True:
		return value.BoolOf(true)
	case r.Type == gjson.False:
		return value.BoolOf(false)
	default:
		return value.Null()
	}
}

// numberFromRaw keeps integers integral: a literal without '.', 'e', or 'E'
// decodes as Int, everything else as Float.
func numberFromRaw(raw string, num float64) value.Value {
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return value.IntOf(i)
		}
	}
	return value.FloatOf(num)
}
