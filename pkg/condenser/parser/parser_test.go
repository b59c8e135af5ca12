// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

func TestAutoDetectJSON(t *testing.T) {
	tree, format, err := Parse(`{"name":"web","replicas":3}`, "")
	require.NoError(t, err)
	assert.Equal(t, "json", format)
	require.Equal(t, value.KindObject, tree.Kind)

	v, ok := tree.Obj.Get("replicas")
	require.True(t, ok)
	assert.Equal(t, value.KindInt, v.Kind)
	assert.Equal(t, int64(3), v.Int)
}

func TestJSONPreservesKeyOrder(t *testing.T) {
	tree, _, err := Parse(`{"zebra":1,"apple":2,"mango":3}`, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra", "apple", "mango"}, tree.Obj.Keys())
}

func TestJSONNumberKinds(t *testing.T) {
	tree, _, err := Parse(`{"i":7,"f":7.5,"e":1e3,"neg":-2}`, "")
	require.NoError(t, err)

	i, _ := tree.Obj.Get("i")
	assert.Equal(t, value.KindInt, i.Kind)
	f, _ := tree.Obj.Get("f")
	assert.Equal(t, value.KindFloat, f.Kind)
	e, _ := tree.Obj.Get("e")
	assert.Equal(t, value.KindFloat, e.Kind)
	neg, _ := tree.Obj.Get("neg")
	assert.Equal(t, int64(-2), neg.Int)
}

func TestAutoDetectYAML(t *testing.T) {
	input := "name: web\nspec:\n  replicas: 3\n  paused: false\n"
	tree, format, err := Parse(input, "")
	require.NoError(t, err)
	assert.Equal(t, "yaml", format)

	spec, ok := tree.Obj.Get("spec")
	require.True(t, ok)
	replicas, _ := spec.Obj.Get("replicas")
	assert.Equal(t, int64(3), replicas.Int)
	paused, _ := spec.Obj.Get("paused")
	assert.Equal(t, value.KindBool, paused.Kind)
	assert.False(t, paused.Bool)
}

func TestAutoDetectCSV(t *testing.T) {
	input := "name,cpu,memory\nweb-1, 250 ,512\nweb-2,,1024\n"
	tree, format, err := Parse(input, "")
	require.NoError(t, err)
	assert.Equal(t, "csv", format)
	require.Equal(t, value.KindArray, tree.Kind)
	require.Len(t, tree.Arr, 2)

	row := tree.Arr[0].Obj
	cpu, _ := row.Get("cpu")
	assert.Equal(t, value.KindInt, cpu.Kind, "whitespace-trimmed numeric cell promotes to int")
	assert.Equal(t, int64(250), cpu.Int)

	empty, _ := tree.Arr[1].Obj.Get("cpu")
	assert.True(t, empty.IsNull(), "empty cell becomes null")
}

func TestAutoDetectTSV(t *testing.T) {
	input := "host\tstatus\nnode-1\tready\nnode-2\tready\n"
	_, format, err := Parse(input, "")
	require.NoError(t, err)
	assert.Equal(t, "csv", format)

	_, format, err = Parse(input, "tsv")
	require.NoError(t, err)
	assert.Equal(t, "tsv", format)
}

func TestAutoDetectXML(t *testing.T) {
	input := `<pods><pod id="1" ready="true">web</pod><pod id="2" ready="false">db</pod></pods>`
	tree, format, err := Parse(input, "")
	require.NoError(t, err)
	assert.Equal(t, "xml", format)

	pods, ok := tree.Obj.Get("pods")
	require.True(t, ok)
	list, ok := pods.Obj.Get("pod")
	require.True(t, ok)
	require.Equal(t, value.KindArray, list.Kind, "repeated child elements collapse to an array")
	require.Len(t, list.Arr, 2)

	first := list.Arr[0].Obj
	id, _ := first.Get("@id")
	assert.Equal(t, "1", value.FormatScalar(id), "attribute keys carry the @ prefix")
	ready, _ := first.Get("@ready")
	assert.Equal(t, "true", value.FormatScalar(ready))
	text, _ := first.Get("#text")
	assert.Equal(t, "web", text.Str, "mixed attr+text nodes expose text under #text")
}

func TestBareScalarRejectedByAllParsers(t *testing.T) {
	for _, input := range []string{"42", `"hello"`, "plain text"} {
		_, _, err := Parse(input, "")
		require.Error(t, err, "input %q", input)
		var pe *ParseError
		assert.True(t, errors.As(err, &pe))
	}
}

func TestEmptyInputRejected(t *testing.T) {
	_, _, err := Parse("", "")
	assert.Error(t, err)
	_, _, err = Parse("   \n", "")
	assert.Error(t, err)
}

func TestFormatHintOverridesAutoDetect(t *testing.T) {
	// Valid YAML that would otherwise be detected as JSON.
	input := `{"a": 1, "b": 2}`
	_, format, err := Parse(input, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "yaml", format)
}

func TestUnknownHintFallsBackToAutoDetect(t *testing.T) {
	_, format, err := Parse(`{"a":1,"b":2}`, "toml")
	require.NoError(t, err)
	assert.Equal(t, "json", format)
}

func TestHintRejectionFallsThrough(t *testing.T) {
	// CSV hint on JSON input: the hinted parser rejects, auto-detect wins.
	_, format, err := Parse(`{"a":1,"b":2}`, "csv")
	require.NoError(t, err)
	assert.Equal(t, "json", format)
}

func TestCSVRequiresTwoColumnsAndOneRow(t *testing.T) {
	_, _, err := Parse("lonely\nvalue\n", "")
	assert.Error(t, err, "single-column input is not a table")

	_, _, err = Parse("a,b\n", "")
	assert.Error(t, err, "header-only input has no data rows")
}

func TestMalformedInputRejected(t *testing.T) {
	_, _, err := Parse(`{"a": [}`, "")
	assert.Error(t, err)
}
