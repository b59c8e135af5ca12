// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package condenser

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/value"
)

func TestQuoteCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"", ""},
		{"with spaces inside", "with spaces inside"},
		{"pipe|inside", `"pipe|inside"`},
		{"line\nbreak", `"line\nbreak"`},
		{" leading", `" leading"`},
		{"trailing ", `"trailing "`},
		{"(1,2,3)", "(1,2,3)"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, quoteCell(tc.in), "input %q", tc.in)
	}
}

func TestTableRenderingExact(t *testing.T) {
	tree := mustParse(t, `[{"name":"a|b","v":1},{"name":" c","v":2}]`)
	out := CondenseValue(tree, DefaultHeuristics())
	assert.Equal(t, "# root\nname|v\n\"a|b\"|1\n\" c\"|2", out)
}

func TestScalarAndTableBlockJoining(t *testing.T) {
	tree := mustParse(t, `{
		"kind":"PodList",
		"meta":{"resourceVersion":12},
		"items":[{"name":"a","v":1},{"name":"b","v":2}],
		"note":"x"
	}`)
	out := CondenseValue(tree, DefaultHeuristics())
	assert.Equal(t,
		"kind: PodList\nmeta.resourceVersion: 12\nnote: x\n\n# items\nname|v\na|1\nb|2",
		out)
}

func TestNullRendersAsEmptyCell(t *testing.T) {
	tree := mustParse(t, `[{"name":"a","v":null,"w":1},{"name":"b","v":3,"w":2}]`)
	h := DefaultHeuristics()
	h.ElideAllNull = false
	h.ElideConstants = false
	out := CondenseValue(tree, h)
	assert.Contains(t, out, "a||1", "null cell is empty between separators")
}

func TestFloatShortestRoundTrip(t *testing.T) {
	tree := mustParse(t, `[{"name":"a","v":0.1},{"name":"b","v":2.0}]`)
	out := CondenseValue(tree, DefaultHeuristics())
	assert.Contains(t, out, "a|0.1")
	assert.Contains(t, out, "b|2")
}

func TestEncodeTOONSkipsPreprocessing(t *testing.T) {
	tree := mustParse(t, `[
		{"name":"a","zone":"same","tags":[1,2]},
		{"name":"b","zone":"same","tags":[3]}
	]`)
	out := EncodeTOON(tree)

	assert.Contains(t, out, "zone", "constants stay in raw mode")
	assert.NotContains(t, out, "zone=same")
	assert.Contains(t, out, "[1,2]", "array cells render as JSON in raw mode")
}

// Determinism: identical input tree and heuristics produce byte-identical
// output, over a corpus of generated trees.
func TestCondenseDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	h := DefaultHeuristics()
	for i := 0; i < 1000; i++ {
		tree := randomValue(r, 0)
		first := CondenseValue(tree, h)
		second := CondenseValue(tree, h)
		assert.Equal(t, first, second, "tree %d", i)

		raw1, raw2 := EncodeTOON(tree), EncodeTOON(tree)
		assert.Equal(t, raw1, raw2, "raw encode, tree %d", i)
	}
}

func randomValue(r *rand.Rand, depth int) value.Value {
	if depth >= 3 {
		return randomScalar(r)
	}
	switch r.Intn(7) {
	case 0:
		return randomScalar(r)
	case 1, 2:
		n := r.Intn(5)
		arr := make([]value.Value, 0, n)
		for i := 0; i < n; i++ {
			arr = append(arr, randomValue(r, depth+1))
		}
		return value.ArrayOf(arr)
	default:
		f := value.NewFields()
		n := 1 + r.Intn(5)
		for i := 0; i < n; i++ {
			f.Set(fmt.Sprintf("k%d", r.Intn(8)), randomValue(r, depth+1))
		}
		return value.ObjectOf(f)
	}
}

func randomScalar(r *rand.Rand) value.Value {
	switch r.Intn(5) {
	case 0:
		return value.Null()
	case 1:
		return value.BoolOf(r.Intn(2) == 0)
	case 2:
		return value.IntOf(int64(r.Intn(1000) - 500))
	case 3:
		return value.FloatOf(r.Float64() * 100)
	default:
		return value.StringOf(fmt.Sprintf("s-%d", r.Intn(100)))
	}
}
