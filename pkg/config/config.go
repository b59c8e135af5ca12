// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

// Package config provides the proxy configuration model.
//
// Two modes are supported:
//  1. Legacy single-upstream via UPSTREAM_MCP_URL plus env vars.
//  2. Multi-upstream via a YAML/JSON config file (CONDENSER_CONFIG or the
//     --config flag).
//
// Configuration is loaded once at startup and treated as immutable; runtime
// reload is out of scope.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser"
	"github.com/teriyakichild/mcp-condenser/pkg/condenser/tokens"
)

// ServerConfig is the per-upstream server configuration.
type ServerConfig struct {
	// URL of the upstream MCP server.
	URL string `yaml:"url" json:"url"`

	// Tools is the condense allowlist; nil means all ("*").
	Tools []string `yaml:"tools" json:"tools"`

	// Headers are static headers sent on every upstream request.
	Headers map[string]string `yaml:"headers" json:"headers"`

	// ForwardHeaders maps incoming request header names to the upstream
	// header names they are forwarded as. Only the mapped headers are
	// forwarded; with no mapping, no incoming header is forwarded.
	ForwardHeaders map[string]string `yaml:"forward_headers" json:"forward_headers"`

	// Condense enables the condensing middleware for this upstream
	// (default true).
	Condense *bool `yaml:"condense" json:"condense"`

	// ToonOnlyTools skip preprocessing and get raw TOON encoding.
	ToonOnlyTools []string `yaml:"toon_only_tools" json:"toon_only_tools"`

	// ToonFallback applies raw TOON to tools matched by neither list
	// (default true).
	ToonFallback *bool `yaml:"toon_fallback" json:"toon_fallback"`

	MinTokenThreshold int            `yaml:"min_token_threshold" json:"min_token_threshold"`
	RevertIfLarger    bool           `yaml:"revert_if_larger" json:"revert_if_larger"`
	MaxTokenLimit     int            `yaml:"max_token_limit" json:"max_token_limit"`
	ToolTokenLimits   map[string]int `yaml:"tool_token_limits" json:"tool_token_limits"`

	// Profile names a heuristic preset; Heuristics and ToolHeuristics
	// deep-merge on top of it, in that order.
	Profile        string                    `yaml:"profile" json:"profile"`
	Heuristics     map[string]any            `yaml:"heuristics" json:"heuristics"`
	ToolHeuristics map[string]map[string]any `yaml:"tool_heuristics" json:"tool_heuristics"`

	// FormatHint overrides parser auto-detection; ToolFormatHints wins
	// per tool.
	FormatHint      string            `yaml:"format_hint" json:"format_hint"`
	ToolFormatHints map[string]string `yaml:"tool_format_hints" json:"tool_format_hints"`
}

// CondenseEnabled reports whether the condensing middleware runs for this
// upstream.
func (s *ServerConfig) CondenseEnabled() bool {
	return s.Condense == nil || *s.Condense
}

// FallbackEnabled reports whether unmatched tools still get raw TOON.
func (s *ServerConfig) FallbackEnabled() bool {
	return s.ToonFallback == nil || *s.ToonFallback
}

// ShaperConfig builds the response-shaper configuration for this upstream.
func (s *ServerConfig) ShaperConfig(counter tokens.Counter) *condenser.ShaperConfig {
	return &condenser.ShaperConfig{
		CondenseTools:     s.Tools,
		ToonOnlyTools:     s.ToonOnlyTools,
		ToonFallback:      s.FallbackEnabled(),
		MinTokenThreshold: s.MinTokenThreshold,
		RevertIfLarger:    s.RevertIfLarger,
		MaxTokenLimit:     s.MaxTokenLimit,
		ToolTokenLimits:   s.ToolTokenLimits,
		Profile:           s.Profile,
		Heuristics:        s.Heuristics,
		ToolHeuristics:    s.ToolHeuristics,
		FormatHint:        s.FormatHint,
		ToolFormatHints:   s.ToolFormatHints,
		Counter:           counter,
	}
}

// Validate resolves the server's heuristics so that unknown keys, unknown
// profiles, and bad values fail at configuration load rather than at
// request time.
func (s *ServerConfig) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("upstream url is required")
	}
	if _, err := condenser.ResolveHeuristics(s.Profile, s.Heuristics); err != nil {
		return err
	}
	for tool, overrides := range s.ToolHeuristics {
		if _, err := condenser.ResolveHeuristics(s.Profile, s.Heuristics, overrides); err != nil {
			return fmt.Errorf("tool %q: %w", tool, err)
		}
	}
	return nil
}

// Config is the full proxy configuration.
type Config struct {
	Servers        map[string]*ServerConfig
	Host           string
	Port           int
	MultiUpstream  bool
	PrefixTools    bool
	MetricsEnabled bool
	MetricsPort    int
}

// ServerNames returns the configured upstream names in sorted order, so
// registration and logging are deterministic.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every upstream's configuration.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("no upstream servers configured")
	}
	for _, name := range c.ServerNames() {
		if err := c.Servers[name].Validate(); err != nil {
			return fmt.Errorf("server %q: %w", name, err)
		}
	}
	return nil
}

// Load builds the configuration: a CONDENSER_CONFIG file takes priority,
// falling back to the single-upstream env surface.
func Load() (*Config, error) {
	if path := os.Getenv("CONDENSER_CONFIG"); path != "" {
		return FromFile(path)
	}
	return FromEnv()
}

// fileConfig is the on-disk layout for multi-upstream mode.
type fileConfig struct {
	Global struct {
		Host           string `yaml:"host" json:"host"`
		Port           int    `yaml:"port" json:"port"`
		PrefixTools    *bool  `yaml:"prefix_tools" json:"prefix_tools"`
		MetricsEnabled *bool  `yaml:"metrics_enabled" json:"metrics_enabled"`
		MetricsPort    int    `yaml:"metrics_port" json:"metrics_port"`
	} `yaml:"global" json:"global"`
	Servers map[string]*ServerConfig `yaml:"servers" json:"servers"`
}

// FromFile loads multi-upstream configuration from a YAML (or JSON) file.
func FromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg := &Config{
		Servers:        fc.Servers,
		Host:           fc.Global.Host,
		Port:           fc.Global.Port,
		MultiUpstream:  true,
		PrefixTools:    fc.Global.PrefixTools == nil || *fc.Global.PrefixTools,
		MetricsEnabled: looseBool(os.Getenv("METRICS_ENABLED")),
		MetricsPort:    envInt("METRICS_PORT", 9090),
	}
	if fc.Global.MetricsEnabled != nil {
		cfg.MetricsEnabled = *fc.Global.MetricsEnabled
	}
	if fc.Global.MetricsPort != 0 {
		cfg.MetricsPort = fc.Global.MetricsPort
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 9000
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds single-upstream configuration from the legacy env surface.
func FromEnv() (*Config, error) {
	url := os.Getenv("UPSTREAM_MCP_URL")
	if url == "" {
		return nil, fmt.Errorf("UPSTREAM_MCP_URL environment variable is required")
	}

	var tools []string
	if raw := strings.TrimSpace(os.Getenv("CONDENSE_TOOLS")); raw != "" && raw != "*" {
		tools = splitList(raw)
	}

	heuristics, err := ParseHeuristicPairs(os.Getenv("CONDENSER_HEURISTICS"))
	if err != nil {
		return nil, err
	}

	limits, err := ParseToolLimits(os.Getenv("TOOL_TOKEN_LIMITS"))
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_MCP_HEADERS")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &headers); err != nil {
			return nil, fmt.Errorf("parsing UPSTREAM_MCP_HEADERS: %w", err)
		}
	}

	fallback := envBool("TOON_FALLBACK", true)
	server := &ServerConfig{
		URL:               url,
		Tools:             tools,
		Headers:           headers,
		ToonOnlyTools:     splitList(os.Getenv("TOON_ONLY_TOOLS")),
		ToonFallback:      &fallback,
		MinTokenThreshold: envInt("MIN_TOKEN_THRESHOLD", 0),
		RevertIfLarger:    envBool("REVERT_IF_LARGER", false),
		MaxTokenLimit:     envInt("MAX_TOKEN_LIMIT", 0),
		ToolTokenLimits:   limits,
		Profile:           strings.TrimSpace(os.Getenv("CONDENSER_PROFILE")),
		Heuristics:        heuristics,
	}

	cfg := &Config{
		Servers:        map[string]*ServerConfig{"default": server},
		Host:           envString("PROXY_HOST", "0.0.0.0"),
		Port:           envInt("PROXY_PORT", 9000),
		MetricsEnabled: looseBool(os.Getenv("METRICS_ENABLED")),
		MetricsPort:    envInt("METRICS_PORT", 9090),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseHeuristicPairs parses the CONDENSER_HEURISTICS comma-list of
// `key:val` pairs. Values coerce by successive try: int, then float, then
// the loose bool convention (false/0/no false, else true).
func ParseHeuristicPairs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := map[string]any{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		i := strings.LastIndex(pair, ":")
		if i <= 0 {
			return nil, fmt.Errorf("malformed heuristic pair %q (want key:val)", pair)
		}
		key := strings.TrimSpace(pair[:i])
		val := strings.TrimSpace(pair[i+1:])
		if n, err := strconv.Atoi(val); err == nil {
			out[key] = n
		} else if f, err := strconv.ParseFloat(val, 64); err == nil {
			out[key] = f
		} else {
			out[key] = looseBool(val)
		}
	}
	return out, nil
}

// ParseToolLimits parses the TOOL_TOKEN_LIMITS comma-list of `tool:int`
// pairs.
func ParseToolLimits(raw string) (map[string]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := map[string]int{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		i := strings.LastIndex(pair, ":")
		if i <= 0 {
			return nil, fmt.Errorf("malformed token limit %q (want tool:limit)", pair)
		}
		limit, err := strconv.Atoi(strings.TrimSpace(pair[i+1:]))
		if err != nil {
			return nil, fmt.Errorf("malformed token limit %q: %w", pair, err)
		}
		out[strings.TrimSpace(pair[:i])] = limit
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// looseBool treats "false", "0", "no", and empty as false, everything else
// as true.
func looseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0", "no":
		return false
	default:
		return true
	}
}

func envBool(name string, def bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	return looseBool(raw)
}

func envInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return def
}

func envString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
