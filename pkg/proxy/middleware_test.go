// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser"
	"github.com/teriyakichild/mcp-condenser/pkg/condenser/tokens"
	"github.com/teriyakichild/mcp-condenser/pkg/telemetry"
)

func newTestShaper(cfg *condenser.ShaperConfig) *shaper {
	if cfg.Counter == nil {
		cfg.Counter = tokens.Estimator{}
	}
	return &shaper{
		serverName: "test",
		cfg:        cfg,
		counter:    cfg.Counter,
		recorder:   telemetry.NoopRecorder{},
	}
}

func TestShapeResultCondensesTextContent(t *testing.T) {
	raw := `[{"name":"a","v":1,"zone":"same"},{"name":"b","v":2,"zone":"same"}]`
	result := &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(raw)},
		StructuredContent: map[string]any{"stale": true},
	}

	sh := newTestShaper(&condenser.ShaperConfig{ToonFallback: true})
	sh.shapeResult(result, "list_things")

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Contains(t, text.Text, "zone=same")
	assert.NotEqual(t, raw, text.Text)
	assert.Nil(t, result.StructuredContent, "structured content is cleared once text is condensed")
}

func TestShapeResultLeavesUnparseableContent(t *testing.T) {
	raw := "this is not structured data"
	result := &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(raw)}}

	sh := newTestShaper(&condenser.ShaperConfig{ToonFallback: true})
	sh.shapeResult(result, "t")

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Equal(t, raw, text.Text)
}

func TestShapeResultCapsPassthroughItems(t *testing.T) {
	// Unparseable text bypasses condensing but the token cap still applies.
	raw := "preamble" + strings.Repeat(" word", 400)
	result := &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(raw)}}

	counter := tokens.Estimator{}
	sh := newTestShaper(&condenser.ShaperConfig{
		ToonFallback:  true,
		MaxTokenLimit: 50,
		Counter:       counter,
	})
	sh.shapeResult(result, "t")

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.LessOrEqual(t, counter.Count(text.Text), 50)
	assert.Contains(t, text.Text, "[truncated:")
}

func TestShapeResultIgnoresNonTextContent(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewImageContent("aGVsbG8=", "image/png")},
	}
	sh := newTestShaper(&condenser.ShaperConfig{ToonFallback: true})
	sh.shapeResult(result, "t")

	_, ok := mcp.AsImageContent(result.Content[0])
	assert.True(t, ok, "non-text content passes through untouched")
}
