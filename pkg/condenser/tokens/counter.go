// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

// Package tokens provides the pluggable token counter used by the response
// shaper's gates and caps. Counters are pure functions of the input string:
// deterministic, and zero for empty input.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates the number of tokens a string costs when sent to an
// LLM. The shaper treats it as opaque.
type Counter interface {
	Count(text string) int
}

// InitErrorer is implemented by counters with fallible lazy initialization.
// The shaper probes it once to decide whether token gates can be trusted.
type InitErrorer interface {
	InitErr() error
}

// Estimator is the vocabulary-free fallback: roughly four bytes per token,
// which tracks cl100k_base closely enough for gating on typical JSON/YAML
// tool output.
type Estimator struct{}

// Count returns the byte-length estimate; empty input is 0 tokens.
func (Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// BPECounter counts with the cl100k_base BPE. The vocabulary loads lazily on
// first use, guarded by a once-initialization primitive so concurrent first
// use is safe. When loading fails, Count degrades to the Estimator and
// InitErr reports the failure.
type BPECounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewBPECounter returns an uninitialized cl100k_base counter.
func NewBPECounter() *BPECounter {
	return &BPECounter{}
}

func (c *BPECounter) init() {
	c.enc, c.err = tiktoken.GetEncoding("cl100k_base")
}

// InitErr forces initialization and returns the initialization error, if
// any.
func (c *BPECounter) InitErr() error {
	c.once.Do(c.init)
	return c.err
}

// Count returns the BPE token count, or the Estimator's count when the
// vocabulary is unavailable.
func (c *BPECounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(c.init)
	if c.err != nil {
		return Estimator{}.Count(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

var defaultCounter = NewBPECounter()

// Default returns the process-wide cl100k_base counter.
func Default() Counter {
	return defaultCounter
}
