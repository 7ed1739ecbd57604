package metrics_test

import (
	"testing"

	"github.com/artpar/llmproxy/adapters/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func TestNewWithRegistryInitializesAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}
	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration is nil")
	}
	if m.RequestsInFlight == nil {
		t.Error("RequestsInFlight is nil")
	}
	if m.RetriesTotal == nil {
		t.Error("RetriesTotal is nil")
	}
	if m.RetriesExhausted == nil {
		t.Error("RetriesExhausted is nil")
	}
	if m.UpstreamDuration == nil {
		t.Error("UpstreamDuration is nil")
	}
	if m.UpstreamErrors == nil {
		t.Error("UpstreamErrors is nil")
	}
	if m.StreamingBytesOut == nil {
		t.Error("StreamingBytesOut is nil")
	}
	if m.StreamingEvents == nil {
		t.Error("StreamingEvents is nil")
	}
}

func TestRequestsTotalRecordsByModelAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RequestsTotal.WithLabelValues("gpt-4", "openai", "2xx").Inc()
	m.RequestsTotal.WithLabelValues("claude-3", "anthropic", "4xx").Add(5)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "llmproxy_requests_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("got %d metric series, want 2", len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("llmproxy_requests_total family not found")
	}
}

func TestRetriesExhaustedIncrementsPerModel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RetriesExhausted.WithLabelValues("gpt-4").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "llmproxy_retries_exhausted_total" {
			if got := f.GetMetric()[0].GetCounter().GetValue(); got != 1 {
				t.Errorf("got %v, want 1", got)
			}
			return
		}
	}
	t.Error("llmproxy_retries_exhausted_total family not found")
}

func TestNormalizePathTruncatesLongPaths(t *testing.T) {
	long := "/v1/chat/completions/" + string(make([]byte, 60))
	got := metrics.NormalizePath(long)
	if len(got) != 53 { // 50 chars + "..."
		t.Errorf("len(got) = %d, want 53", len(got))
	}
}

func TestNormalizePathLeavesShortPaths(t *testing.T) {
	short := "/v1/chat/completions"
	if got := metrics.NormalizePath(short); got != short {
		t.Errorf("got %q, want %q", got, short)
	}
}
