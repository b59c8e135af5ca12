// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package condenser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/tokens"
)

// byteCounter counts one token per byte, which makes gate arithmetic exact
// in tests.
type byteCounter struct{}

func (byteCounter) Count(s string) int { return len(s) }

// brokenCounter simulates a tokenizer whose vocabulary failed to load.
type brokenCounter struct{}

func (brokenCounter) Count(s string) int { return len(s) }
func (brokenCounter) InitErr() error     { return errors.New("vocabulary unavailable") }

func tableJSON(n int) string {
	rows := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, fmt.Sprintf(`{"name":"row-%03d","value":%d,"zone":"same"}`, i, i))
	}
	return "[" + strings.Join(rows, ",") + "]"
}

func TestShapeCondensesByDefault(t *testing.T) {
	raw := tableJSON(10)
	res := Shape(raw, "list_things", &ShaperConfig{ToonFallback: true, Counter: tokens.Estimator{}})

	assert.Equal(t, ModeCondense, res.Mode)
	assert.Contains(t, res.Text, "zone=same")
	assert.Less(t, res.OutputTokens, res.InputTokens)
}

// Monotone gating: below the token threshold the output is byte-identical
// to the input.
func TestShapeThresholdGate(t *testing.T) {
	raw := `{"a":1,"b":2}`
	cfg := &ShaperConfig{MinTokenThreshold: 1000, Counter: tokens.Estimator{}}
	res := Shape(raw, "t", cfg)

	assert.Equal(t, ModeSkipped, res.Mode)
	assert.Equal(t, raw, res.Text)
}

// Revert law: with revert_if_larger the output never exceeds the original.
func TestShapeRevertIfLarger(t *testing.T) {
	raw := `[1,2,3]`
	cfg := &ShaperConfig{RevertIfLarger: true, Counter: byteCounter{}}
	res := Shape(raw, "t", cfg)

	assert.Equal(t, ModeReverted, res.Mode)
	assert.Equal(t, raw, res.Text)
	assert.LessOrEqual(t, res.OutputTokens, res.InputTokens)
}

// Cap law: the output fits the limit and the truncation notice is the
// suffix.
func TestShapeTokenCap(t *testing.T) {
	raw := tableJSON(200)
	counter := tokens.Estimator{}
	cfg := &ShaperConfig{MaxTokenLimit: 60, Counter: counter}
	res := Shape(raw, "t", cfg)

	assert.True(t, res.Truncated)
	assert.LessOrEqual(t, counter.Count(res.Text), 60)
	assert.Regexp(t, regexp.MustCompile(`\n…\[truncated: \d+ tokens over limit\]$`), res.Text)
}

func TestShapePerToolLimitWinsOverGlobal(t *testing.T) {
	raw := tableJSON(200)
	counter := tokens.Estimator{}
	cfg := &ShaperConfig{
		MaxTokenLimit:   10000,
		ToolTokenLimits: map[string]int{"small": 60},
		Counter:         counter,
	}

	res := Shape(raw, "small", cfg)
	assert.True(t, res.Truncated)
	assert.LessOrEqual(t, counter.Count(res.Text), 60)

	res = Shape(raw, "other", cfg)
	assert.False(t, res.Truncated)
}

func TestShapeToonOnlyWinsOverCondense(t *testing.T) {
	raw := tableJSON(5)
	cfg := &ShaperConfig{
		CondenseTools: []string{"*"},
		ToonOnlyTools: []string{"raw_tool"},
		Counter:       tokens.Estimator{},
	}
	res := Shape(raw, "raw_tool", cfg)

	assert.Equal(t, ModeToonOnly, res.Mode)
	assert.NotContains(t, res.Text, "zone=same", "toon_only skips preprocessing")
	assert.Contains(t, res.Text, "zone")
}

func TestShapeFallback(t *testing.T) {
	raw := tableJSON(5)
	cfg := &ShaperConfig{
		CondenseTools: []string{"something_else"},
		ToonFallback:  true,
		Counter:       tokens.Estimator{},
	}
	res := Shape(raw, "unmatched", cfg)
	assert.Equal(t, ModeFallback, res.Mode)
}

func TestShapeNoMatchNoFallback(t *testing.T) {
	raw := tableJSON(5)
	cfg := &ShaperConfig{
		CondenseTools: []string{"something_else"},
		ToonFallback:  false,
		Counter:       tokens.Estimator{},
	}
	res := Shape(raw, "unmatched", cfg)
	assert.Equal(t, ModePassthrough, res.Mode)
	assert.Equal(t, raw, res.Text)
}

func TestShapeUnparseablePassesThrough(t *testing.T) {
	raw := "plain text that is no structured format at all"
	res := Shape(raw, "t", &ShaperConfig{ToonFallback: true, Counter: tokens.Estimator{}})

	assert.Equal(t, ModePassthrough, res.Mode)
	assert.True(t, res.ParseFailed)
	assert.Equal(t, raw, res.Text)
}

func TestShapePerToolHeuristics(t *testing.T) {
	raw := tableJSON(5)
	cfg := &ShaperConfig{
		ToolHeuristics: map[string]map[string]any{
			"keep_all": {"elide_constants": false},
		},
		Counter: tokens.Estimator{},
	}

	res := Shape(raw, "keep_all", cfg)
	assert.NotContains(t, res.Text, "zone=same")

	res = Shape(raw, "other_tool", cfg)
	assert.Contains(t, res.Text, "zone=same")
}

func TestShapePerToolFormatHint(t *testing.T) {
	raw := "a\tb\n1\t2\n"
	cfg := &ShaperConfig{
		ToolFormatHints: map[string]string{"tsv_tool": "tsv"},
		Counter:         tokens.Estimator{},
	}
	res := Shape(raw, "tsv_tool", cfg)
	assert.Equal(t, "tsv", res.Format)
}

// A tokenizer that failed to initialize bypasses gates and caps but the
// pipeline still emits condensed output.
func TestShapeBypassesGatesWhenTokenizerBroken(t *testing.T) {
	raw := tableJSON(10)
	cfg := &ShaperConfig{
		MinTokenThreshold: 1 << 30,
		MaxTokenLimit:     1,
		Counter:           brokenCounter{},
	}
	res := Shape(raw, "t", cfg)

	assert.Equal(t, ModeCondense, res.Mode)
	assert.False(t, res.Truncated)
	assert.Contains(t, res.Text, "zone=same")
}

func TestTruncatePreservesCharacterBoundaries(t *testing.T) {
	text := strings.Repeat("日本語テキスト。", 200)
	counter := tokens.Estimator{}
	out := Truncate(text, 50, counter)

	assert.True(t, utf8.ValidString(out), "truncation must not split a multibyte character")
	assert.LessOrEqual(t, counter.Count(out), 50)
	assert.Contains(t, out, "[truncated:")
}

func TestTruncateNoopWithinLimit(t *testing.T) {
	text := "short"
	assert.Equal(t, text, Truncate(text, 100, tokens.Estimator{}))
	assert.Equal(t, text, Truncate(text, 0, tokens.Estimator{}))
}

func TestCondenseTextNeverFails(t *testing.T) {
	cfg := &ShaperConfig{ToonFallback: true, Counter: tokens.Estimator{}}
	require.Equal(t, "not structured", CondenseText([]byte("not structured"), "t", cfg))
	assert.NotEmpty(t, CondenseText([]byte(`{"a":1,"b":2}`), "t", cfg))
}
