// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"net/http"
)

// headerContextKey carries the incoming request's headers through the MCP
// server's handler context so tool calls can selectively forward them
// upstream.
type headerContextKey struct{}

// withIncomingHeaders is the HTTP context hook installed on the streamable
// HTTP server.
func withIncomingHeaders(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, headerContextKey{}, r.Header.Clone())
}

// forwardedHeaders translates incoming headers per the configured mapping:
// only mapped headers are forwarded, renamed to their destination names.
// Returns destination-name → value.
func forwardedHeaders(ctx context.Context, mapping map[string]string) map[string]string {
	if len(mapping) == 0 {
		return nil
	}
	incoming, ok := ctx.Value(headerContextKey{}).(http.Header)
	if !ok {
		return nil
	}
	out := map[string]string{}
	for src, dst := range mapping {
		if val := incoming.Get(src); val != "" {
			out[dst] = val
		}
	}
	return out
}
