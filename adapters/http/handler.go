// Package http adapts the proxy service onto net/http: dialect dispatch,
// body/model extraction, SSE response wiring, and dialect-aware error
// rendering.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/llmproxy/adapters/metrics"
	"github.com/artpar/llmproxy/domain/proxy"
	"github.com/artpar/llmproxy/ports"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// maxRequestBody bounds how much of an inbound body the handler buffers
// before handing it to the proxy service.
const maxRequestBody = 10 << 20

// ProxyHandler dispatches inbound OpenAI/Anthropic-dialect requests to the
// proxy service and writes its result back onto the wire.
type ProxyHandler struct {
	service ports.ProxyService
	audit   *AuditLogger
	metrics *metrics.Collector
}

// NewProxyHandler builds a ProxyHandler. m may be nil to disable metrics.
func NewProxyHandler(service ports.ProxyService, audit *AuditLogger, m *metrics.Collector) *ProxyHandler {
	return &ProxyHandler{service: service, audit: audit, metrics: m}
}

// modelFromBody extracts the top-level "model" string field a dialect
// request body is required to carry.
func modelFromBody(body []byte) (string, bool) {
	var doc struct {
		Model  string `json:"model"`
		Stream bool   `json:"stream"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", false
	}
	return doc.Model, doc.Model != ""
}

func wantsStream(body []byte) bool {
	var doc struct {
		Stream bool `json:"stream"`
	}
	_ = json.Unmarshal(body, &doc)
	return doc.Stream
}

// handleDialect is the shared body for both the chat-completions and
// messages endpoints; only the inbound dialect label differs.
func (h *ProxyHandler) handleDialect(dialect proxy.Dialect) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			h.writeError(w, dialect, proxy.NewBadRequest("failed to read request body"))
			return
		}

		model, ok := modelFromBody(body)
		if !ok {
			h.writeError(w, dialect, proxy.NewBadRequest(`request body must contain a top-level string "model" field`))
			return
		}

		req := proxy.Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			Dialect:   dialect,
			Model:     model,
			Headers:   extractHeaders(r),
			Body:      body,
			Stream:    wantsStream(body),
			RemoteIP:  extractIP(r),
			UserAgent: r.UserAgent(),
			TraceID:   middleware.GetReqID(ctx),
		}

		if req.Stream {
			h.handleStreaming(w, r, req)
			return
		}

		resp, herr := h.service.Handle(ctx, req)
		if herr != nil {
			h.logError(req, herr, time.Since(start))
			h.writeError(w, dialect, herr)
			return
		}

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		h.recordMetrics(req, resp.Status, time.Since(start))
		w.WriteHeader(resp.Status)
		if len(resp.Body) > 0 {
			_, _ = w.Write(resp.Body)
		}
	}
}

func (h *ProxyHandler) handleStreaming(w http.ResponseWriter, r *http.Request, req proxy.Request) {
	start := time.Now()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, canFlush := w.(http.Flusher)
	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}

	tw := &trackingWriter{w: w}
	err := h.service.HandleStreaming(r.Context(), req, tw, flush)
	if err != nil {
		h.logError(req, err, time.Since(start))
		if !tw.wrote {
			// Nothing reached the client yet: a clean dialect-shaped error
			// body is still a valid first response.
			h.writeError(w, req.Dialect, err)
			return
		}
		// SSE frames already reached the client; writing another body now
		// would corrupt the stream mid-parse. The connection is simply
		// dropped, and the partial byte count is already captured in the
		// audit record the proxy service emits.
		return
	}
	h.recordMetrics(req, 200, time.Since(start))
}

// trackingWriter records whether any byte has been written downstream, so
// a streaming failure can be told apart from one that happened before the
// response was committed.
type trackingWriter struct {
	w     io.Writer
	wrote bool
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.wrote = true
	}
	return n, err
}

func (h *ProxyHandler) recordMetrics(req proxy.Request, status int, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	h.metrics.RequestsTotal.WithLabelValues(req.Model, string(req.Dialect), statusLabel(status)).Inc()
	h.metrics.RequestDuration.WithLabelValues(req.Model, string(req.Dialect)).Observe(latency.Seconds())
}

func (h *ProxyHandler) logError(req proxy.Request, err error, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	if perr, ok := err.(*proxy.Error); ok {
		h.metrics.RequestsTotal.WithLabelValues(req.Model, string(req.Dialect), statusLabel(perr.Status)).Inc()
		h.metrics.UpstreamErrors.WithLabelValues(req.Model, string(perr.Kind)).Inc()
	}
}

func (h *ProxyHandler) writeError(w http.ResponseWriter, dialect proxy.Dialect, err error) {
	pe, ok := err.(*proxy.Error)
	if !ok {
		pe = proxy.NewUpstreamTransport(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(pe.Status)
	_, _ = w.Write(proxy.RenderBody(dialect, pe))
}

// extractHeaders copies the inbound headers the route's header policy will
// see as "incoming", case-preserved, first value only.
func extractHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string, len(r.Header)+1)
	if r.Host != "" {
		headers["Host"] = r.Host
	}
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return headers
}

// extractIP returns the first X-Forwarded-For hop, falling back to
// X-Real-IP, falling back to the raw remote address.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// ModelsResponse is the body of GET /models.
type ModelsResponse struct {
	Data []ModelEntry `json:"data"`
}

// ModelEntry is one entry in ModelsResponse.
type ModelEntry struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

// ModelsHandler lists every configured model name.
type ModelsHandler struct {
	names func() []string
}

// NewModelsHandler builds a ModelsHandler over a model-name lister.
func NewModelsHandler(names func() []string) *ModelsHandler {
	return &ModelsHandler{names: names}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := ModelsResponse{}
	for _, n := range h.names() {
		resp.Data = append(resp.Data, ModelEntry{ID: n, Object: "model"})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthHandler serves GET /health.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// NewLoggingMiddleware logs every request at debug level, matching the
// teacher's request-scoped zerolog shape.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/health" {
				return
			}
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
