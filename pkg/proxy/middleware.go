// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser"
	"github.com/teriyakichild/mcp-condenser/pkg/condenser/tokens"
	"github.com/teriyakichild/mcp-condenser/pkg/logger"
	"github.com/teriyakichild/mcp-condenser/pkg/telemetry"
)

// shaper condenses tool results for one upstream. It is the middleware
// between the upstream response and the downstream client: every text
// content item runs through the response shaper, and the effective token
// cap is enforced on every text item as the final step — including items
// the shaper passed through.
type shaper struct {
	serverName string
	cfg        *condenser.ShaperConfig
	counter    tokens.Counter
	recorder   telemetry.Recorder
}

// shapeResult rewrites a tool result in place. Condensation never fails the
// response; the worst case is the original content forwarded unchanged.
func (s *shaper) shapeResult(result *mcp.CallToolResult, baseName string) {
	if result == nil {
		return
	}

	condensedAny := false
	for i, item := range result.Content {
		text, ok := mcp.AsTextContent(item)
		if !ok {
			continue
		}

		start := time.Now()
		shaped := condenser.Shape(text.Text, baseName, s.cfg)
		s.recorder.RecordProcessingSeconds(baseName, s.serverName, time.Since(start))

		s.recorder.RecordRequest(baseName, s.serverName, string(shaped.Mode))
		if shaped.ParseFailed {
			s.recorder.RecordParseFailure(baseName, s.serverName)
			continue
		}

		switch shaped.Mode {
		case condenser.ModeCondense, condenser.ModeToonOnly, condenser.ModeFallback:
			result.Content[i] = mcp.NewTextContent(shaped.Text)
			condensedAny = true
			s.recorder.RecordTokens(baseName, s.serverName, shaped.InputTokens, shaped.OutputTokens)
			if shaped.InputTokens > 0 {
				ratio := float64(shaped.OutputTokens) / float64(shaped.InputTokens)
				s.recorder.RecordCompressionRatio(baseName, s.serverName, ratio)
				logger.Infow("condensed tool response",
					"tool", baseName, "server", s.serverName, "mode", shaped.Mode,
					"format", shaped.Format,
					"input_tokens", shaped.InputTokens, "output_tokens", shaped.OutputTokens,
					"reduction_pct", 100*(1-ratio))
			}
			if shaped.Truncated {
				s.recorder.RecordTruncation(baseName, s.serverName)
			}
		case condenser.ModeSkipped, condenser.ModeReverted:
			logger.Debugw("kept original tool response",
				"tool", baseName, "server", s.serverName, "mode", shaped.Mode,
				"input_tokens", shaped.InputTokens)
		}
	}

	// Clear structured content so the client reads our condensed text.
	if condensedAny {
		result.StructuredContent = nil
	}

	s.enforceCap(result, baseName)
}

// enforceCap truncates every text item against the effective per-tool token
// limit, covering items the shaper left untouched.
func (s *shaper) enforceCap(result *mcp.CallToolResult, baseName string) {
	limit := s.cfg.MaxTokenLimit
	if perTool, ok := s.cfg.ToolTokenLimits[baseName]; ok {
		limit = perTool
	}
	if limit <= 0 {
		return
	}
	if ie, ok := s.counter.(tokens.InitErrorer); ok && ie.InitErr() != nil {
		return
	}
	for i, item := range result.Content {
		text, ok := mcp.AsTextContent(item)
		if !ok {
			continue
		}
		truncated := condenser.Truncate(text.Text, limit, s.counter)
		if truncated != text.Text {
			result.Content[i] = mcp.NewTextContent(truncated)
			s.recorder.RecordTruncation(baseName, s.serverName)
			logger.Infow("truncated tool response",
				"tool", baseName, "server", s.serverName, "token_limit", limit)
		}
	}
}
