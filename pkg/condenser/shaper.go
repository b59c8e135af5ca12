// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package condenser

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/parser"
	"github.com/teriyakichild/mcp-condenser/pkg/condenser/tokens"
	"github.com/teriyakichild/mcp-condenser/pkg/logger"
)

// Mode labels the shaping outcome for logging and metric labels.
type Mode string

// Shaping outcomes.
const (
	ModeCondense    Mode = "condense"
	ModeToonOnly    Mode = "toon_only"
	ModeFallback    Mode = "toon_fallback"
	ModePassthrough Mode = "passthrough"
	ModeSkipped     Mode = "skipped"
	ModeReverted    Mode = "reverted"
)

// ShaperConfig governs when to condense, when to fall back to raw TOON,
// when to revert to the original, and how to enforce hard token caps.
type ShaperConfig struct {
	// CondenseTools lists tools that enter the full pipeline. nil or a
	// literal "*" entry means all tools.
	CondenseTools []string

	// ToonOnlyTools lists tools that get raw TOON with preprocessing
	// disabled.
	ToonOnlyTools []string

	// ToonFallback applies raw TOON to tools matched by neither list.
	ToonFallback bool

	// MinTokenThreshold skips condensing entirely when the original
	// response is below this token count. 0 disables the gate.
	MinTokenThreshold int

	// RevertIfLarger returns the original when the condensed output does
	// not actually shrink it.
	RevertIfLarger bool

	// MaxTokenLimit is the global token cap; 0 disables it.
	MaxTokenLimit int

	// ToolTokenLimits holds per-tool caps that win over MaxTokenLimit.
	ToolTokenLimits map[string]int

	// Profile names the heuristic preset resolved before overrides.
	Profile string

	// Heuristics overrides the profile defaults.
	Heuristics map[string]any

	// ToolHeuristics deep-merges per-tool overrides on top of Heuristics.
	ToolHeuristics map[string]map[string]any

	// FormatHint overrides parser auto-detection for all tools.
	FormatHint string

	// ToolFormatHints holds per-tool parser overrides that win over
	// FormatHint.
	ToolFormatHints map[string]string

	// Counter is the token estimator used by gates and caps; nil selects
	// the package default.
	Counter tokens.Counter
}

// Result is the outcome of shaping one response item.
type Result struct {
	Text         string
	Mode         Mode
	Format       string
	InputTokens  int
	OutputTokens int
	Truncated    bool
	ParseFailed  bool
}

// counterWarn guards the one-time tokenizer-unavailable warning.
var counterWarn sync.Once

// CondenseText runs the response shaper on a raw tool response and returns
// the final text. It never fails: the worst case is the original response
// passed through unchanged.
func CondenseText(raw []byte, tool string, cfg *ShaperConfig) string {
	return Shape(string(raw), tool, cfg).Text
}

// Shape applies the full response-shaping policy to one text item.
func Shape(raw string, tool string, cfg *ShaperConfig) Result {
	res := Result{Text: raw, Mode: ModePassthrough}
	if cfg == nil {
		cfg = &ShaperConfig{ToonFallback: true}
	}

	toonOnly := matchTool(cfg.ToonOnlyTools, tool, false)
	condense := matchTool(cfg.CondenseTools, tool, true)
	if !toonOnly && !condense && !cfg.ToonFallback {
		return res
	}

	tree, format, err := parser.Parse(raw, cfg.formatHintFor(tool))
	if err != nil {
		res.ParseFailed = true
		return res
	}
	res.Format = format

	counter := cfg.Counter
	if counter == nil {
		counter = tokens.Default()
	}
	gated := true
	if ie, ok := counter.(tokens.InitErrorer); ok {
		if initErr := ie.InitErr(); initErr != nil {
			counterWarn.Do(func() {
				logger.Warnf("tokenizer unavailable, token gates and caps bypassed: %v", initErr)
			})
			gated = false
		}
	}

	if gated {
		res.InputTokens = counter.Count(raw)
		if cfg.MinTokenThreshold > 0 && res.InputTokens < cfg.MinTokenThreshold {
			res.Mode = ModeSkipped
			return res
		}
	}

	var condensed string
	switch {
	case toonOnly:
		condensed = EncodeTOON(tree)
		res.Mode = ModeToonOnly
	case condense:
		h, herr := cfg.heuristicsFor(tool)
		if herr != nil {
			// Configuration should have been validated at load time; an
			// invalid record here degrades to passthrough rather than
			// failing the response.
			logger.Errorf("tool=%s invalid heuristics: %v", tool, herr)
			return res
		}
		condensed = CondenseValue(tree, h)
		res.Mode = ModeCondense
	default:
		condensed = EncodeTOON(tree)
		res.Mode = ModeFallback
	}

	if gated {
		res.OutputTokens = counter.Count(condensed)
		if cfg.RevertIfLarger && res.OutputTokens >= res.InputTokens {
			res.Mode = ModeReverted
			res.Text = raw
			res.OutputTokens = res.InputTokens
			return res
		}

		limit := cfg.MaxTokenLimit
		if perTool, ok := cfg.ToolTokenLimits[tool]; ok {
			limit = perTool
		}
		if limit > 0 && res.OutputTokens > limit {
			condensed = Truncate(condensed, limit, counter)
			res.OutputTokens = counter.Count(condensed)
			res.Truncated = true
		}
	}

	res.Text = condensed
	return res
}

// heuristicsFor resolves profile defaults, server overrides, and per-tool
// overrides into the effective heuristics for one tool.
func (cfg *ShaperConfig) heuristicsFor(tool string) (Heuristics, error) {
	return ResolveHeuristics(cfg.Profile, cfg.Heuristics, cfg.ToolHeuristics[tool])
}

func (cfg *ShaperConfig) formatHintFor(tool string) string {
	if hint, ok := cfg.ToolFormatHints[tool]; ok {
		return hint
	}
	return cfg.FormatHint
}

// matchTool reports whether a tool appears in a list. A nil list and a
// literal "*" entry both match everything when wildcardDefault is set.
func matchTool(list []string, tool string, wildcardDefault bool) bool {
	if list == nil {
		return wildcardDefault
	}
	for _, t := range list {
		if t == "*" || t == tool {
			return true
		}
	}
	return false
}

// Truncate cuts text to the longest prefix that fits the token cap after
// accounting for the truncation notice, then appends the notice. The binary
// search runs over byte prefixes snapped to character boundaries, so a
// multibyte character is never split. Text already within the cap is
// returned unchanged.
func Truncate(text string, limit int, counter tokens.Counter) string {
	total := counter.Count(text)
	if limit <= 0 || total <= limit {
		return text
	}

	notice := fmt.Sprintf("\n…[truncated: %d tokens over limit]", total-limit)
	target := limit - counter.Count(notice)
	if target < 0 {
		target = 0
	}

	lo, hi := 0, len(text)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		for mid < hi && !utf8.RuneStart(text[mid]) {
			mid++
		}
		if counter.Count(text[:mid]) <= target {
			lo = mid
		} else {
			next := mid - 1
			for next > lo && !utf8.RuneStart(text[next]) {
				next--
			}
			hi = next
		}
	}
	return text[:lo] + notice
}
