package http

import (
	"context"

	"github.com/artpar/llmproxy/domain/audit"
	"github.com/artpar/llmproxy/ports"
	"github.com/rs/zerolog"
)

// AuditLogger is the ports.AuditSink implementation: it turns one
// audit.Record into a single structured zerolog event. domain/audit stays
// free of any logging dependency; this is the one layer that owns it.
type AuditLogger struct {
	logger zerolog.Logger
}

// NewAuditLogger builds an AuditLogger writing through logger.
func NewAuditLogger(logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

var _ ports.AuditSink = (*AuditLogger)(nil)

// Record emits one structured log line per completed request.
func (a *AuditLogger) Record(ctx context.Context, rec audit.Record) {
	event := a.logger.Info()
	if rec.ErrorKind != "" {
		event = a.logger.Warn()
	}

	event.
		Str("timestamp", rec.Timestamp).
		Str("client_ip", rec.ClientIP).
		Str("method", rec.Method).
		Str("path", rec.Path).
		Str("model", rec.Model).
		Str("backend_model", rec.BackendModel).
		Str("upstream_url", rec.UpstreamURL).
		Int("upstream_status", rec.UpstreamStatus).
		Int64("duration_ms", rec.DurationMs).
		Int64("bytes_in", rec.BytesIn).
		Int64("bytes_out", rec.BytesOut).
		Int("retry_count", rec.RetryCount)

	if rec.ErrorKind != "" {
		event.Str("error_kind", rec.ErrorKind)
	}
	if rec.Headers != nil {
		event.Interface("headers", rec.Headers)
	}
	if rec.Body != nil {
		event.Bytes("body", rec.Body)
	}

	event.Msg("proxy request")
}
