// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

// Package value defines the generic value tree produced by the input parsers
// and consumed by the condensation engine. A Value is a tagged union over the
// scalar, array, and object shapes that JSON, YAML, CSV, and XML payloads can
// decode to. Object key order is insertion order and is significant: the
// engine guarantees byte-identical output for identical input, so nothing in
// this package may iterate an unordered map.
package value

import (
	"strconv"
	"strings"
)

// Kind discriminates the variants of a Value. The variant of any value is
// fixed at construction; preprocessing builds new trees rather than mutating
// variants in place.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

// String returns the lowercase kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged union: null, bool, int, float, string, array, or object.
// Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Arr   []Value
	Obj   *Fields
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// BoolOf, IntOf, FloatOf, StringOf, ArrayOf, and ObjectOf construct values
// of the matching kind.
func BoolOf(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func IntOf(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func FloatOf(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func StringOf(s string) Value  { return Value{Kind: KindString, Str: s} }
func ArrayOf(a []Value) Value  { return Value{Kind: KindArray, Arr: a} }
func ObjectOf(f *Fields) Value { return Value{Kind: KindObject, Obj: f} }

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Fields is an insertion-ordered string→Value map backing the object variant.
type Fields struct {
	keys []string
	vals map[string]Value
}

// NewFields returns an empty ordered field map.
func NewFields() *Fields {
	return &Fields{vals: make(map[string]Value)}
}

// Set inserts or replaces a key. A replaced key keeps its original position.
func (f *Fields) Set(key string, v Value) {
	if _, ok := f.vals[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.vals[key] = v
}

// Get returns the value for key and whether it is present.
func (f *Fields) Get(key string) (Value, bool) {
	v, ok := f.vals[key]
	return v, ok
}

// Delete removes a key, preserving the order of the remaining keys.
func (f *Fields) Delete(key string) {
	if _, ok := f.vals[key]; !ok {
		return
	}
	delete(f.vals, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The caller must not mutate the
// returned slice.
func (f *Fields) Keys() []string { return f.keys }

// Len returns the number of keys.
func (f *Fields) Len() int { return len(f.keys) }

// FormatScalar renders a scalar value as TOON cell text: null as empty,
// bools lowercase, ints in decimal, floats in their shortest round-trip
// representation. Arrays and objects fall back to compact JSON.
func FormatScalar(v Value) string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	default:
		return EncodeJSON(v)
	}
}

// EncodeJSON renders a value tree as compact JSON, preserving object key
// order. Used for heterogeneous arrays and depth-limited sub-trees that the
// tabular pipeline cannot represent.
func EncodeJSON(v Value) string {
	var b strings.Builder
	writeJSON(&b, v)
	return b.String()
}

func writeJSON(b *strings.Builder, v Value) {
	switch v.Kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		if v.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindInt:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		b.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case KindString:
		b.WriteString(strconv.Quote(v.Str))
	case KindArray:
		b.WriteByte('[')
		for i, el := range v.Arr {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSON(b, el)
		}
		b.WriteByte(']')
	case KindObject:
		b.WriteByte('{')
		for i, k := range v.Obj.Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			el, _ := v.Obj.Get(k)
			writeJSON(b, el)
		}
		b.WriteByte('}')
	}
}
