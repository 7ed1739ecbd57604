// Package app wires the domain components into the one orchestrating
// service the HTTP layer calls: resolve a route, transform the request,
// build outbound headers, retry the upstream call, transform or stream
// the response, and emit one audit record per request.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/artpar/llmproxy/domain/audit"
	"github.com/artpar/llmproxy/domain/headers"
	"github.com/artpar/llmproxy/domain/proxy"
	"github.com/artpar/llmproxy/domain/retry"
	"github.com/artpar/llmproxy/domain/route"
	"github.com/artpar/llmproxy/domain/streaming"
	"github.com/artpar/llmproxy/domain/transform"
	"github.com/artpar/llmproxy/ports"
)

const maxStreamingErrorBody = 64 << 10

// Service is the ports.ProxyService implementation: the single place that
// knows the order components run in for one request.
type Service struct {
	routes    *route.Table
	upstream  ports.UpstreamClient
	audit     ports.AuditSink
	clock     ports.Clock
	randFloat func() float64

	// LogBodies attaches redacted, truncated request headers/body to
	// every audit record when true. Off by default: request bodies can
	// carry sensitive content even after redaction misses an unlisted
	// field name, so an operator must opt in.
	LogBodies bool
}

// New builds a Service. sink may be nil, in which case no record is
// emitted.
func New(routes *route.Table, upstream ports.UpstreamClient, sink ports.AuditSink, clock ports.Clock) *Service {
	return &Service{routes: routes, upstream: upstream, audit: sink, clock: clock, randFloat: rand.Float64}
}

var _ ports.ProxyService = (*Service)(nil)

// funcFlusher adapts a flush callback to streaming.Flusher without the
// streaming package needing to know about http.Flusher.
type funcFlusher func()

func (f funcFlusher) Flush() { f() }

// Handle runs the full non-streaming request pipeline.
func (s *Service) Handle(ctx context.Context, req proxy.Request) (proxy.Response, error) {
	start := s.clock.Now()

	r, ok := s.routes.Resolve(req.Model)
	if !ok {
		err := proxy.NewModelNotFound(req.Model)
		s.recordFailure(req, nil, err, 0, start)
		return proxy.Response{}, err
	}

	body, perr := prepareRequestBody(r, req.Body)
	if perr != nil {
		s.recordFailure(req, r, perr, 0, start)
		return proxy.Response{}, perr
	}

	outboundHeaders := headers.Apply(req.Headers, r.Headers, r)

	var respBody []byte
	var respHeaders map[string]string
	attempts := 0
	attempt := func(ctx context.Context, i int) retry.Outcome {
		attempts = i + 1
		resp, err := s.upstream.Do(ctx, r, "POST", "", outboundHeaders, body)
		if err != nil {
			return retry.Outcome{Retryable: true, Err: classifyUpstreamErr(err)}
		}
		if retry.IsRetryableStatus(resp.Status) {
			return retry.Outcome{
				Status:     resp.Status,
				RetryAfter: resp.Headers["Retry-After"],
				Retryable:  true,
				Err:        proxy.NewUpstreamStatus(resp.Status, resp.Body),
			}
		}
		if resp.Status >= 400 {
			return retry.Outcome{Status: resp.Status, Err: proxy.NewUpstreamStatus(resp.Status, resp.Body)}
		}
		respBody = resp.Body
		respHeaders = resp.Headers
		return retry.Outcome{Status: resp.Status}
	}

	outcome, err := retry.Execute(ctx, r.Retry, s.randFloat, attempt)
	if err != nil {
		perr := asProxyError(err)
		s.recordFailure(req, r, perr, attempts-1, start)
		return proxy.Response{}, perr
	}

	out, terr := (transform.Pipeline{Steps: r.Transforms.Response}).Run(respBody)
	if terr != nil {
		// Response-side transform failures never break the response: the
		// untransformed bytes still go to the client.
		out = respBody
	}

	resp := proxy.Response{
		Status:       outcome.Status,
		Headers:      respHeaders,
		Body:         out,
		LatencyMs:    time.Since(start).Milliseconds(),
		UpstreamAddr: r.Endpoint,
	}
	s.recordSuccess(req, r, resp.Status, attempts-1, start, len(body), len(out))
	return resp, nil
}

// HandleStreaming runs the request pipeline for an SSE response: the
// retry executor governs only the connection attempt, since once the
// first downstream byte is written the attempt can no longer be redone.
func (s *Service) HandleStreaming(ctx context.Context, req proxy.Request, w io.Writer, flush func()) error {
	start := s.clock.Now()

	r, ok := s.routes.Resolve(req.Model)
	if !ok {
		err := proxy.NewModelNotFound(req.Model)
		s.recordFailure(req, nil, err, 0, start)
		return err
	}

	body, perr := prepareRequestBody(r, req.Body)
	if perr != nil {
		s.recordFailure(req, r, perr, 0, start)
		return perr
	}

	outboundHeaders := headers.Apply(req.Headers, r.Headers, r)

	var stream ports.StreamingResponse
	attempts := 0
	attempt := func(ctx context.Context, i int) retry.Outcome {
		attempts = i + 1
		resp, err := s.upstream.DoStreaming(ctx, r, "POST", "", outboundHeaders, body)
		if err != nil {
			return retry.Outcome{Retryable: true, Err: classifyUpstreamErr(err)}
		}
		if retry.IsRetryableStatus(resp.Status) {
			errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxStreamingErrorBody))
			resp.Body.Close()
			return retry.Outcome{
				Status:     resp.Status,
				RetryAfter: resp.Headers["Retry-After"],
				Retryable:  true,
				Err:        proxy.NewUpstreamStatus(resp.Status, errBody),
			}
		}
		if resp.Status >= 400 {
			errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxStreamingErrorBody))
			resp.Body.Close()
			return retry.Outcome{Status: resp.Status, Err: proxy.NewUpstreamStatus(resp.Status, errBody)}
		}
		stream = resp
		return retry.Outcome{Status: resp.Status}
	}

	outcome, err := retry.Execute(ctx, r.Retry, s.randFloat, attempt)
	if err != nil {
		perr := asProxyError(err)
		s.recordFailure(req, r, perr, attempts-1, start)
		return perr
	}
	defer stream.Body.Close()

	fwd := streaming.Forwarder{Transforms: r.Transforms.Response}
	n, ferr := fwd.Forward(ctx, w, funcFlusher(flush), stream.Body)

	errKind := ""
	switch {
	case ferr == nil:
	case errors.Is(ferr, context.Canceled):
		errKind = "client_disconnect"
	default:
		errKind = string(proxy.ErrKindStreamAborted)
	}

	s.recordStream(req, r, outcome.Status, attempts-1, start, len(body), n, errKind)
	return ferr
}

// prepareRequestBody applies the target_model rewrite, then the route's
// request-side transform pipeline, in that order: user-configured rules
// must see the post-rewrite body.
func prepareRequestBody(r *route.ModelRoute, body []byte) ([]byte, *proxy.Error) {
	rewritten, err := rewriteModel(body, r.TargetModel)
	if err != nil {
		return nil, proxy.NewBadRequest("invalid JSON body: " + err.Error())
	}
	out, err := (transform.Pipeline{Steps: r.Transforms.Request}).Run(rewritten)
	if err != nil {
		return nil, proxy.NewTransformError("request transform failed", err)
	}
	return out, nil
}

// rewriteModel sets the body's top-level "model" field to target, when
// target is non-empty. The client-visible model name used for routing is
// never re-derived from this rewritten body.
func rewriteModel(body []byte, target string) ([]byte, error) {
	if target == "" {
		return body, nil
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	doc["model"] = target
	return json.Marshal(doc)
}

// classifyUpstreamErr maps a raw error from the upstream client into the
// error taxonomy's UpstreamTimeout/UpstreamTransport split.
func classifyUpstreamErr(err error) *proxy.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return proxy.NewUpstreamTimeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return proxy.NewUpstreamTimeout(err)
	}
	return proxy.NewUpstreamTransport(err)
}

// asProxyError recovers the *proxy.Error the retry executor wraps its
// failures in, falling back to a StreamAborted classification for a bare
// context cancellation (never itself a *proxy.Error).
func asProxyError(err error) *proxy.Error {
	var pe *proxy.Error
	if errors.As(err, &pe) {
		return pe
	}
	return &proxy.Error{Kind: proxy.ErrKindStreamAborted, Status: 499, Message: err.Error(), Cause: err}
}

// backendModel returns the model name actually sent upstream: the
// route's target_model rewrite when one is configured, otherwise the
// client's original model name unchanged.
func backendModel(r *route.ModelRoute, clientModel string) string {
	if r.TargetModel != "" {
		return r.TargetModel
	}
	return clientModel
}

func (s *Service) recordFailure(req proxy.Request, r *route.ModelRoute, perr *proxy.Error, retries int, start time.Time) {
	if s.audit == nil {
		return
	}
	rec := audit.Record{
		Timestamp:  s.clock.Now().Format(time.RFC3339),
		ClientIP:   req.RemoteIP,
		Method:     req.Method,
		Path:       req.Path,
		Model:      req.Model,
		DurationMs: time.Since(start).Milliseconds(),
		BytesIn:    int64(len(req.Body)),
		RetryCount: retries,
		ErrorKind:  string(perr.Kind),
	}
	if r != nil {
		rec.BackendModel = backendModel(r, req.Model)
		rec.UpstreamURL = r.Endpoint
	}
	if perr.UpstreamStatus != 0 {
		rec.UpstreamStatus = perr.UpstreamStatus
	} else {
		rec.UpstreamStatus = perr.Status
	}
	s.attachBody(&rec, req)
	s.audit.Record(context.Background(), rec)
}

// attachBody fills rec.Headers/rec.Body with the redacted, truncated
// client request when body/header logging is enabled; it is a no-op
// otherwise, leaving both fields nil.
func (s *Service) attachBody(rec *audit.Record, req proxy.Request) {
	if !s.LogBodies {
		return
	}
	rec.Headers = audit.RedactHeaders(req.Headers)
	rec.Body = audit.RedactBody(req.Body)
}

func (s *Service) recordSuccess(req proxy.Request, r *route.ModelRoute, status, retries int, start time.Time, bytesIn, bytesOut int) {
	if s.audit == nil {
		return
	}
	rec := audit.Record{
		Timestamp:      s.clock.Now().Format(time.RFC3339),
		ClientIP:       req.RemoteIP,
		Method:         req.Method,
		Path:           req.Path,
		Model:          req.Model,
		BackendModel:   backendModel(r, req.Model),
		UpstreamURL:    r.Endpoint,
		UpstreamStatus: status,
		DurationMs:     time.Since(start).Milliseconds(),
		BytesIn:        int64(bytesIn),
		BytesOut:       int64(bytesOut),
		RetryCount:     retries,
	}
	s.attachBody(&rec, req)
	s.audit.Record(context.Background(), rec)
}

func (s *Service) recordStream(req proxy.Request, r *route.ModelRoute, status, retries int, start time.Time, bytesIn int, bytesOut int64, errKind string) {
	if s.audit == nil {
		return
	}
	rec := audit.Record{
		Timestamp:      s.clock.Now().Format(time.RFC3339),
		ClientIP:       req.RemoteIP,
		Method:         req.Method,
		Path:           req.Path,
		Model:          req.Model,
		BackendModel:   backendModel(r, req.Model),
		UpstreamURL:    r.Endpoint,
		UpstreamStatus: status,
		DurationMs:     time.Since(start).Milliseconds(),
		BytesIn:        int64(bytesIn),
		BytesOut:       bytesOut,
		RetryCount:     retries,
		ErrorKind:      errKind,
	}
	s.attachBody(&rec, req)
	s.audit.Record(context.Background(), rec)
}
