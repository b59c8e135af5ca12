// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry records condensation metrics. A NoopRecorder (zero
// overhead when disabled) and a PrometheusRecorder sit behind a shared
// interface; use NewRecorder to pick the right one.
package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teriyakichild/mcp-condenser/pkg/logger"
)

// Recorder is the interface shared by the noop and prometheus recorders.
type Recorder interface {
	// RecordRequest counts one processed item by outcome mode.
	RecordRequest(tool, server, mode string)

	// RecordTokens counts tokens before and after condensing.
	RecordTokens(tool, server string, inputTokens, outputTokens int)

	// RecordCompressionRatio observes output/input for one item.
	RecordCompressionRatio(tool, server string, ratio float64)

	// RecordProcessingSeconds observes wall-clock time for one item.
	RecordProcessingSeconds(tool, server string, duration time.Duration)

	// RecordTruncation counts a token-limit truncation event.
	RecordTruncation(tool, server string)

	// RecordParseFailure counts an item whose payload no parser accepted.
	RecordParseFailure(tool, server string)
}

// NoopRecorder discards all measurements.
type NoopRecorder struct{}

func (NoopRecorder) RecordRequest(string, string, string)                 {}
func (NoopRecorder) RecordTokens(string, string, int, int)                {}
func (NoopRecorder) RecordCompressionRatio(string, string, float64)       {}
func (NoopRecorder) RecordProcessingSeconds(string, string, time.Duration) {}
func (NoopRecorder) RecordTruncation(string, string)                      {}
func (NoopRecorder) RecordParseFailure(string, string)                    {}

// PrometheusRecorder records to a prometheus registry.
type PrometheusRecorder struct {
	requestsTotal     *prometheus.CounterVec
	inputTokensTotal  *prometheus.CounterVec
	outputTokensTotal *prometheus.CounterVec
	savedTokensTotal  *prometheus.CounterVec
	compressionRatio  *prometheus.HistogramVec
	processingSeconds *prometheus.HistogramVec
	truncationsTotal  *prometheus.CounterVec
	parseFailures     *prometheus.CounterVec
}

// NewPrometheusRecorder builds a recorder and registers its collectors with
// the given registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condenser_requests_total",
			Help: "Items processed",
		}, []string{"tool", "server", "mode"}),
		inputTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condenser_input_tokens_total",
			Help: "Input tokens before condensing",
		}, []string{"tool", "server"}),
		outputTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condenser_output_tokens_total",
			Help: "Output tokens after condensing",
		}, []string{"tool", "server"}),
		savedTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condenser_saved_tokens_total",
			Help: "Tokens saved (input - output, positive only)",
		}, []string{"tool", "server"}),
		compressionRatio: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "condenser_compression_ratio",
			Help: "output/input ratio per item (lower = better)",
		}, []string{"tool", "server"}),
		processingSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "condenser_processing_seconds",
			Help: "Wall clock time per shaped item",
		}, []string{"tool", "server"}),
		truncationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condenser_truncations_total",
			Help: "Token-limit truncation events",
		}, []string{"tool", "server"}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condenser_parse_failures_total",
			Help: "Items whose payload no parser accepted",
		}, []string{"tool", "server"}),
	}
	reg.MustRegister(
		r.requestsTotal, r.inputTokensTotal, r.outputTokensTotal,
		r.savedTokensTotal, r.compressionRatio, r.processingSeconds,
		r.truncationsTotal, r.parseFailures,
	)
	return r
}

// RecordRequest implements Recorder.
func (r *PrometheusRecorder) RecordRequest(tool, server, mode string) {
	r.requestsTotal.WithLabelValues(tool, server, mode).Inc()
}

// RecordTokens implements Recorder.
func (r *PrometheusRecorder) RecordTokens(tool, server string, inputTokens, outputTokens int) {
	r.inputTokensTotal.WithLabelValues(tool, server).Add(float64(inputTokens))
	r.outputTokensTotal.WithLabelValues(tool, server).Add(float64(outputTokens))
	if saved := inputTokens - outputTokens; saved > 0 {
		r.savedTokensTotal.WithLabelValues(tool, server).Add(float64(saved))
	}
}

// RecordCompressionRatio implements Recorder.
func (r *PrometheusRecorder) RecordCompressionRatio(tool, server string, ratio float64) {
	r.compressionRatio.WithLabelValues(tool, server).Observe(ratio)
}

// RecordProcessingSeconds implements Recorder.
func (r *PrometheusRecorder) RecordProcessingSeconds(tool, server string, duration time.Duration) {
	r.processingSeconds.WithLabelValues(tool, server).Observe(duration.Seconds())
}

// RecordTruncation implements Recorder.
func (r *PrometheusRecorder) RecordTruncation(tool, server string) {
	r.truncationsTotal.WithLabelValues(tool, server).Inc()
}

// RecordParseFailure implements Recorder.
func (r *PrometheusRecorder) RecordParseFailure(tool, server string) {
	r.parseFailures.WithLabelValues(tool, server).Inc()
}

// NewRecorder returns a recorder and, when enabled, starts the /metrics
// endpoint on the given port.
func NewRecorder(enabled bool, port int) Recorder {
	if !enabled {
		return NoopRecorder{}
	}

	reg := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server error: %v", err)
		}
	}()
	logger.Infof("metrics endpoint listening on http://0.0.0.0:%d/metrics", port)
	return recorder
}
