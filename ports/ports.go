// Package ports defines the interfaces (contracts) between layers.
// Implementations live in adapters/.
package ports

import (
	"context"
	"io"
	"time"

	"github.com/artpar/llmproxy/domain/audit"
	"github.com/artpar/llmproxy/domain/proxy"
	"github.com/artpar/llmproxy/domain/route"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique trace identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Upstream Client Port
// -----------------------------------------------------------------------------

// UpstreamResponse is one buffered upstream response.
type UpstreamResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// StreamingResponse is an upstream response forwarded as a byte stream.
type StreamingResponse struct {
	Status  int
	Headers map[string]string
	Body    io.ReadCloser
}

// UpstreamClient performs one HTTP call to a route's upstream, using the
// pooled client for that route's (ssl_verify, connect_timeout,
// total_timeout) tuple.
type UpstreamClient interface {
	// Do sends a buffered request and returns a buffered response.
	Do(ctx context.Context, r *route.ModelRoute, method, path string, headers map[string]string, body []byte) (UpstreamResponse, error)

	// DoStreaming sends a request and returns an unbuffered response body
	// the caller must close.
	DoStreaming(ctx context.Context, r *route.ModelRoute, method, path string, headers map[string]string, body []byte) (StreamingResponse, error)
}

// -----------------------------------------------------------------------------
// Transformer Port
// -----------------------------------------------------------------------------

// Transformer applies a route's configured request/response transform
// pipelines.
type Transformer interface {
	TransformRequest(ctx context.Context, r *route.ModelRoute, body []byte) ([]byte, error)
	TransformResponse(ctx context.Context, r *route.ModelRoute, body []byte) ([]byte, error)
}

// -----------------------------------------------------------------------------
// Audit Sink Port
// -----------------------------------------------------------------------------

// AuditSink persists or emits one completed request's log record.
type AuditSink interface {
	Record(ctx context.Context, rec audit.Record)
}

// -----------------------------------------------------------------------------
// Proxy Service Port
// -----------------------------------------------------------------------------

// ProxyService orchestrates one request end to end: routing, transforms,
// retrying upstream, and logging.
type ProxyService interface {
	Handle(ctx context.Context, req proxy.Request) (proxy.Response, error)
	HandleStreaming(ctx context.Context, req proxy.Request, w io.Writer, flush func()) error
}
