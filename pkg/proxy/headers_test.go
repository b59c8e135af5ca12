// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForwardedHeadersTranslatesMappedOnly(t *testing.T) {
	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("X-User-Token", "secret")
	req.Header.Set("X-Trace-Id", "abc123")
	req.Header.Set("X-Unrelated", "nope")

	ctx := withIncomingHeaders(context.Background(), req)
	out := forwardedHeaders(ctx, map[string]string{
		"X-User-Token": "Authorization",
		"X-Trace-Id":   "X-Trace-Id",
		"X-Missing":    "X-Missing",
	})

	assert.Equal(t, map[string]string{
		"Authorization": "secret",
		"X-Trace-Id":    "abc123",
	}, out)
}

func TestForwardedHeadersNoMapping(t *testing.T) {
	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("X-User-Token", "secret")
	ctx := withIncomingHeaders(context.Background(), req)

	assert.Nil(t, forwardedHeaders(ctx, nil), "without a mapping nothing is forwarded")
}

func TestForwardedHeadersNoIncomingContext(t *testing.T) {
	out := forwardedHeaders(context.Background(), map[string]string{"A": "B"})
	assert.Nil(t, out)
}
