// Package proxy provides request/response value types and the error
// taxonomy for the proxy request pipeline. Authentication, rate limiting,
// quota, and billing fields from the teacher's original Request/AuthContext
// shapes are gone: this proxy does not authenticate clients.
package proxy

// Request is the inbound request as the handler sees it, after parsing the
// body just far enough to learn the dialect and the client-visible model
// name, but before routing.
type Request struct {
	Method    string
	Path      string
	Dialect   Dialect
	Model     string // client-visible model name, parsed from the body; never re-resolved after routing
	Headers   map[string]string
	Body      []byte
	Stream    bool
	RemoteIP  string
	UserAgent string
	TraceID   string
}

// Response is a completed, buffered (non-streaming) proxy response.
type Response struct {
	Status       int
	Headers      map[string]string
	Body         []byte
	LatencyMs    int64
	UpstreamAddr string
}
