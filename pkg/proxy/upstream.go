// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teriyakichild/mcp-condenser/pkg/config"
	"github.com/teriyakichild/mcp-condenser/pkg/logger"
)

const upstreamTimeout = 30 * time.Second

// Upstream wraps one configured upstream MCP server. A fresh client is
// created per operation: tool calls carry per-request forwarded headers, so
// connections cannot be shared across requests.
type Upstream struct {
	name string
	cfg  *config.ServerConfig
}

// NewUpstream builds an upstream handle from its server configuration.
func NewUpstream(name string, cfg *config.ServerConfig) *Upstream {
	return &Upstream{name: name, cfg: cfg}
}

// Name returns the configured upstream name.
func (u *Upstream) Name() string { return u.name }

// roundTripperFunc is a function adapter for http.RoundTripper.
type roundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// connect creates, starts, and initializes an MCP client against the
// upstream. Headers are injected at the HTTP transport layer: forwarded
// headers translated from the incoming request first, static config headers
// on top.
func (u *Upstream) connect(ctx context.Context) (*client.Client, error) {
	headers := map[string]string{}
	for src, dst := range forwardedHeaders(ctx, u.cfg.ForwardHeaders) {
		headers[src] = dst
	}
	for k, v := range u.cfg.Headers {
		headers[k] = v
	}

	base := http.DefaultTransport
	httpClient := &http.Client{
		Timeout: upstreamTimeout,
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			return base.RoundTrip(req)
		}),
	}

	c, err := client.NewStreamableHttpClient(
		u.cfg.URL,
		transport.WithHTTPTimeout(upstreamTimeout),
		transport.WithHTTPBasicClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client for upstream %s: %w", u.name, err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting client for upstream %s: %w", u.name, err)
	}

	if _, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "mcp-condenser",
				Version: "0.1.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}); err != nil {
		closeQuietly(c)
		return nil, fmt.Errorf("initializing upstream %s: %w", u.name, err)
	}
	return c, nil
}

// ListTools queries the upstream's tool list, retrying transient failures
// with exponential backoff. Used once at startup during aggregation.
func (u *Upstream) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	tools, err := backoff.Retry(ctx, func() ([]mcp.Tool, error) {
		c, err := u.connect(ctx)
		if err != nil {
			return nil, err
		}
		defer closeQuietly(c)

		result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return nil, fmt.Errorf("listing tools on upstream %s: %w", u.name, err)
		}
		return result.Tools, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(4))
	if err != nil {
		return nil, err
	}
	return tools, nil
}

// CallTool forwards a tool call to the upstream using the tool's original
// (unprefixed) name.
func (u *Upstream) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	c, err := u.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(c)

	result, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tool %s failed on upstream %s: %w", name, u.name, err)
	}
	return result, nil
}

func closeQuietly(c *client.Client) {
	if err := c.Close(); err != nil {
		logger.Debugf("closing upstream client: %v", err)
	}
}
