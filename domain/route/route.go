// Package route provides the per-model route configuration value types and
// the model-keyed router. Routes are immutable once built by the config
// loader and shared read-only across every concurrent request.
package route

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/artpar/llmproxy/domain/transform"
)

// BackendKind selects upstream dialect conventions: auth header form and
// SSE framing dialect.
type BackendKind string

const (
	BackendOpenAI    BackendKind = "openai"
	BackendAnthropic BackendKind = "anthropic"
	BackendOllama    BackendKind = "ollama"
)

// IsValid reports whether the kind is one of the known backends.
func (k BackendKind) IsValid() bool {
	switch k {
	case BackendOpenAI, BackendAnthropic, BackendOllama:
		return true
	}
	return false
}

// HeaderMode selects how the header transformer seeds the outbound set.
type HeaderMode string

const (
	HeaderModeWhitelist   HeaderMode = "whitelist"
	HeaderModeBlacklist   HeaderMode = "blacklist"
	HeaderModePassthrough HeaderMode = "passthrough"
)

// IsValid reports whether the mode is known.
func (m HeaderMode) IsValid() bool {
	switch m {
	case HeaderModeWhitelist, HeaderModeBlacklist, HeaderModePassthrough:
		return true
	}
	return false
}

// HeaderPolicy controls outbound header construction. Force/Add keys are
// compared case-insensitively by the header transformer; Drop entries too.
type HeaderPolicy struct {
	Mode  HeaderMode
	Force map[string]string
	Add   map[string]string
	Drop  []string
}

// RetryPolicy bounds the retry executor's attempt/backoff budget.
type RetryPolicy struct {
	MaxAttempts  int   // >= 1
	BackoffMs    int64 // >= 0
	MaxBackoffMs int64 // >= BackoffMs
}

// TransformPolicy is the ordered request/response transform pipeline for one route.
type TransformPolicy struct {
	Request  []transform.Transform
	Response []transform.Transform
}

// ClientTuple identifies the pooled HTTP client a route uses: every route
// sharing the same tuple shares the same *http.Client in the upstream
// client factory.
type ClientTuple struct {
	SSLVerify      bool
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
}

// ModelRoute is the per-model configuration: where and how to forward a
// request for one client-visible model name.
type ModelRoute struct {
	Name        string // client-visible model name; the sole router key
	BackendKind BackendKind
	Endpoint    string // absolute URL of the upstream chat/messages endpoint
	APIKey      string
	TargetModel string // optional; rewrites the body's "model" field before forwarding
	Timeout     time.Duration
	Retry       RetryPolicy
	SSLVerify   bool
	Headers     HeaderPolicy
	Transforms  TransformPolicy
}

// ClientTuple returns the (ssl_verify, connect_timeout, total_timeout) tuple
// this route's upstream client is pooled under.
func (r *ModelRoute) ClientTuple(connectTimeout time.Duration) ClientTuple {
	return ClientTuple{
		SSLVerify:      r.SSLVerify,
		ConnectTimeout: connectTimeout,
		TotalTimeout:   r.Timeout,
	}
}

// Validate checks the structural invariants a ModelRoute must satisfy.
// Regex/JSONPath compilation errors are caught earlier, when the
// transform.Transform values are constructed; this only checks the
// remaining fields named in the invariants.
func (r *ModelRoute) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("route: model name is required")
	}
	if !r.BackendKind.IsValid() {
		return fmt.Errorf("route %q: invalid backend_kind %q", r.Name, r.BackendKind)
	}
	u, err := url.Parse(r.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("route %q: endpoint must be an absolute http(s) URL, got %q", r.Name, r.Endpoint)
	}
	if r.Retry.MaxAttempts < 1 {
		return fmt.Errorf("route %q: retry.max_attempts must be >= 1", r.Name)
	}
	if r.Retry.MaxBackoffMs < r.Retry.BackoffMs {
		return fmt.Errorf("route %q: retry.max_backoff_ms must be >= retry.backoff_ms", r.Name)
	}
	if !r.Headers.Mode.IsValid() {
		return fmt.Errorf("route %q: invalid header mode %q", r.Name, r.Headers.Mode)
	}
	return nil
}

// Dialect maps a backend kind to the client-facing dialect used to render
// error bodies for this route.
func (r *ModelRoute) Dialect() string {
	if r.BackendKind == BackendAnthropic {
		return "anthropic"
	}
	return "openai"
}

// Table is the immutable, read-only model-name -> ModelRoute map built once
// at startup and shared across every concurrent request.
type Table struct {
	routes map[string]*ModelRoute
	names  []string
}

// NewTable builds a Table from a set of routes, keyed by ModelRoute.Name.
func NewTable(routes []*ModelRoute) *Table {
	m := make(map[string]*ModelRoute, len(routes))
	names := make([]string, 0, len(routes))
	for _, r := range routes {
		m[r.Name] = r
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return &Table{routes: m, names: names}
}

// Resolve looks up a route by exact, case-sensitive client-visible model
// name. No wildcards, no fallback route.
func (t *Table) Resolve(model string) (*ModelRoute, bool) {
	r, ok := t.routes[model]
	return r, ok
}

// ModelNames returns every configured model name, sorted, for the /models
// listing endpoint.
func (t *Table) ModelNames() []string {
	return t.names
}
