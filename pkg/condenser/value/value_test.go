// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsPreserveInsertionOrder(t *testing.T) {
	f := NewFields()
	f.Set("zebra", IntOf(1))
	f.Set("apple", IntOf(2))
	f.Set("mango", IntOf(3))

	assert.Equal(t, []string{"zebra", "apple", "mango"}, f.Keys())

	// Replacing a key keeps its original position.
	f.Set("apple", IntOf(9))
	assert.Equal(t, []string{"zebra", "apple", "mango"}, f.Keys())
	v, ok := f.Get("apple")
	require.True(t, ok)
	assert.Equal(t, int64(9), v.Int)
}

func TestFieldsDelete(t *testing.T) {
	f := NewFields()
	f.Set("a", IntOf(1))
	f.Set("b", IntOf(2))
	f.Set("c", IntOf(3))

	f.Delete("b")
	assert.Equal(t, []string{"a", "c"}, f.Keys())
	_, ok := f.Get("b")
	assert.False(t, ok)

	// Deleting an absent key is a no-op.
	f.Delete("b")
	assert.Equal(t, []string{"a", "c"}, f.Keys())
}

func TestFormatScalar(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null is empty", Null(), ""},
		{"bool true", BoolOf(true), "true"},
		{"bool false", BoolOf(false), "false"},
		{"int", IntOf(-42), "-42"},
		{"integral float drops the point", FloatOf(3.0), "3"},
		{"float shortest round-trip", FloatOf(0.1), "0.1"},
		{"string as-is", StringOf("nginx:1.25"), "nginx:1.25"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatScalar(tc.in))
		})
	}
}

func TestEncodeJSONPreservesKeyOrder(t *testing.T) {
	inner := NewFields()
	inner.Set("b", IntOf(2))
	inner.Set("a", IntOf(1))

	f := NewFields()
	f.Set("outer", ObjectOf(inner))
	f.Set("list", ArrayOf([]Value{IntOf(1), StringOf("x"), Null()}))

	got := EncodeJSON(ObjectOf(f))
	assert.Equal(t, `{"outer":{"b":2,"a":1},"list":[1,"x",null]}`, got)
}
