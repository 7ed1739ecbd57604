// Package metrics provides Prometheus metrics collection for the proxy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every Prometheus metric the proxy exposes.
type Collector struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	RetriesTotal     *prometheus.CounterVec
	RetriesExhausted *prometheus.CounterVec

	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	UpstreamInFlight prometheus.Gauge

	StreamingBytesOut *prometheus.CounterVec
	StreamingEvents   *prometheus.CounterVec
}

// New creates a metrics collector registered against the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a metrics collector against a custom registry,
// to avoid global state in tests.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llmproxy",
				Name:      "requests_total",
				Help:      "Total number of client requests processed, by model and final status",
			},
			[]string{"model", "backend", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "llmproxy",
				Name:      "request_duration_seconds",
				Help:      "Client-facing request duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"model", "backend"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "llmproxy",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llmproxy",
				Name:      "retries_total",
				Help:      "Total number of upstream retry attempts, by model",
			},
			[]string{"model"},
		),
		RetriesExhausted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llmproxy",
				Name:      "retries_exhausted_total",
				Help:      "Total number of requests that exhausted their retry budget",
			},
			[]string{"model"},
		),

		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "llmproxy",
				Name:      "upstream_duration_seconds",
				Help:      "Upstream attempt duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"model", "status"},
		),
		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llmproxy",
				Name:      "upstream_errors_total",
				Help:      "Total number of upstream errors, by classification",
			},
			[]string{"model", "kind"},
		),
		UpstreamInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "llmproxy",
				Name:      "upstream_requests_in_flight",
				Help:      "Number of requests currently in flight to an upstream",
			},
		),

		StreamingBytesOut: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llmproxy",
				Name:      "streaming_bytes_out_total",
				Help:      "Total bytes written to downstream streaming clients",
			},
			[]string{"model"},
		),
		StreamingEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llmproxy",
				Name:      "streaming_events_total",
				Help:      "Total number of SSE events forwarded downstream",
			},
			[]string{"model"},
		),
	}
}

// NormalizePath reduces label cardinality for the rare paths that are
// logged outside the fixed chat-completions/messages routes.
func NormalizePath(path string) string {
	if len(path) > 50 {
		return path[:50] + "..."
	}
	return path
}
