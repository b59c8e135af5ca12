// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

// Package proxy implements the transparent MCP proxy: it aggregates tools
// from one or more upstream MCP servers, forwards tool calls, and runs each
// tool response through the condensation engine on the way back.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/teriyakichild/mcp-condenser/pkg/condenser/tokens"
	"github.com/teriyakichild/mcp-condenser/pkg/config"
	"github.com/teriyakichild/mcp-condenser/pkg/logger"
	"github.com/teriyakichild/mcp-condenser/pkg/telemetry"
)

// version is injected at build time.
var version = "0.1.0"

// route maps a registered (possibly prefixed) tool name back to its
// upstream and original name.
type route struct {
	upstream *Upstream
	baseName string
	shaper   *shaper
	enabled  bool
}

// Proxy is the aggregating MCP proxy server.
type Proxy struct {
	cfg      *config.Config
	recorder telemetry.Recorder
	counter  tokens.Counter

	// routes is populated once during registration, before serving starts.
	routes map[string]*route
}

// New builds a proxy from its configuration. The recorder may be nil, in
// which case metrics are discarded.
func New(cfg *config.Config, recorder telemetry.Recorder) *Proxy {
	if recorder == nil {
		recorder = telemetry.NoopRecorder{}
	}
	return &Proxy{
		cfg:      cfg,
		recorder: recorder,
		counter:  tokens.Default(),
		routes:   map[string]*route{},
	}
}

// Run discovers upstream tools, registers them, and serves until the
// context is canceled.
func (p *Proxy) Run(ctx context.Context) error {
	mcpServer := server.NewMCPServer(
		"mcp-condenser",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	if err := p.registerUpstreams(ctx, mcpServer); err != nil {
		return err
	}

	streamableServer := server.NewStreamableHTTPServer(
		mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(withIncomingHeaders),
	)

	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           streamableServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("starting proxy on http://%s/mcp (upstreams=%d prefix_tools=%v)",
		addr, len(p.cfg.Servers), p.cfg.PrefixTools)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("proxy server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down proxy")
		return httpServer.Shutdown(shutdownCtx)
	}
}

// registerUpstreams lists tools from every upstream concurrently and
// registers the aggregate, prefixing names with the upstream name when
// configured. With prefixing off, a name provided by two upstreams is a
// configuration error.
func (p *Proxy) registerUpstreams(ctx context.Context, mcpServer *server.MCPServer) error {
	type discovery struct {
		serverName string
		upstream   *Upstream
		tools      []mcp.Tool
	}

	names := p.cfg.ServerNames()
	results := make([]*discovery, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			up := NewUpstream(name, p.cfg.Servers[name])
			tools, err := up.ListTools(gctx)
			if err != nil {
				return fmt.Errorf("discovering upstream %q: %w", name, err)
			}
			results[i] = &discovery{serverName: name, upstream: up, tools: tools}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, d := range results {
		srvCfg := p.cfg.Servers[d.serverName]
		sh := &shaper{
			serverName: d.serverName,
			cfg:        srvCfg.ShaperConfig(p.counter),
			counter:    p.counter,
			recorder:   p.recorder,
		}

		// A tools allowlist restricts which upstream tools are exposed at
		// all, in addition to selecting the condense pipeline.
		allowed := map[string]bool{}
		for _, t := range srvCfg.Tools {
			allowed[t] = true
		}

		sort.Slice(d.tools, func(i, j int) bool { return d.tools[i].Name < d.tools[j].Name })
		for _, tool := range d.tools {
			if len(allowed) > 0 && !allowed[tool.Name] {
				continue
			}

			registered := tool.Name
			if p.cfg.MultiUpstream && p.cfg.PrefixTools {
				registered = d.serverName + "_" + tool.Name
			} else if existing, ok := p.routes[registered]; ok {
				return fmt.Errorf(
					"tool name collision: %q is provided by both %q and %q; enable prefix_tools or use the tools allowlist",
					registered, existing.upstream.Name(), d.serverName)
			}

			rt := &route{
				upstream: d.upstream,
				baseName: tool.Name,
				shaper:   sh,
				enabled:  srvCfg.CondenseEnabled(),
			}
			p.routes[registered] = rt

			// Register a fresh tool definition carrying only the input
			// schema: once responses are condensed to TOON text, the
			// upstream's output schema no longer describes them.
			mcpServer.AddTool(mcp.Tool{
				Name:        registered,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			}, p.toolHandler(rt))

			logger.Infow("registered tool", "tool", registered, "server", d.serverName)
		}
	}
	return nil
}

// toolHandler forwards a tool call to its upstream and shapes the response.
func (p *Proxy) toolHandler(rt *route) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		callID := uuid.NewString()[:8]
		logger.Debugw("forwarding tool call",
			"call_id", callID, "tool", rt.baseName, "server", rt.upstream.Name())

		result, err := rt.upstream.CallTool(ctx, rt.baseName, req.GetArguments())
		if err != nil {
			logger.Warnw("upstream tool call failed",
				"call_id", callID, "tool", rt.baseName, "error", err)
			return nil, err
		}

		if rt.enabled {
			rt.shaper.shapeResult(result, rt.baseName)
		} else {
			p.recorder.RecordRequest(rt.baseName, rt.upstream.Name(), "passthrough")
		}
		return result, nil
	}
}
