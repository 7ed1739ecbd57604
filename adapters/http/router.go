package http

import (
	"net/http"

	"github.com/artpar/llmproxy/adapters/metrics"
	"github.com/artpar/llmproxy/domain/proxy"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig holds the optional pieces NewRouter wires in.
type RouterConfig struct {
	Metrics     *metrics.Collector
	MetricsPath string // defaults to /metrics when Metrics is non-nil
	ModelNames  func() []string
}

// NewRouter builds the top-level router: health, models, metrics, and the
// two dialect endpoints. Unknown paths 404; known paths reject the wrong
// method with 405, matching net/http's default chi behavior.
func NewRouter(proxyHandler *ProxyHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	// No blanket request timeout: the retry executor owns the overall
	// per-attempt budget, and a streaming response's duration is bounded
	// only by the upstream's own lifetime.

	if cfg.Metrics != nil {
		r.Use(newMetricsMiddleware(cfg.Metrics))
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	r.Get("/health", HealthHandler)

	if cfg.ModelNames != nil {
		r.Get("/models", NewModelsHandler(cfg.ModelNames).ServeHTTP)
	}

	r.Post("/v1/chat/completions", proxyHandler.handleDialect(proxy.DialectOpenAI))
	r.Post("/v1/messages", proxyHandler.handleDialect(proxy.DialectAnthropic))

	return r
}

// newMetricsMiddleware tracks the in-flight request gauge for every route
// except the metrics/health endpoints themselves.
func newMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()
			next.ServeHTTP(w, r)
		})
	}
}
