// Package proxy holds the pure value types that flow through one request:
// the inbound/outbound request/response shapes and the error taxonomy used
// to render a dialect-correct error body back to the client.
package proxy

import (
	"encoding/json"
	"fmt"
)

// Dialect identifies which client-facing wire shape an inbound request used.
type Dialect string

const (
	DialectOpenAI    Dialect = "openai"
	DialectAnthropic Dialect = "anthropic"
)

// ErrorKind is the taxonomy from the design: a closed set of machine-readable
// failure classes, not a type hierarchy.
type ErrorKind string

const (
	ErrKindConfig            ErrorKind = "ConfigError"
	ErrKindModelNotFound     ErrorKind = "ModelNotFound"
	ErrKindBadRequest        ErrorKind = "BadRequest"
	ErrKindUpstreamTimeout   ErrorKind = "UpstreamTimeout"
	ErrKindUpstreamTransport ErrorKind = "UpstreamTransport"
	ErrKindUpstreamStatus    ErrorKind = "UpstreamStatus"
	ErrKindTransform         ErrorKind = "TransformError"
	ErrKindStreamAborted     ErrorKind = "StreamAborted"
	ErrKindRetriesExhausted  ErrorKind = "RetriesExhausted"
)

// Error is a machine-readable proxy failure. It is not the same as a Go
// wrapped error chain: it's the terminal classification attached to one
// request for logging and for rendering the client-visible body.
type Error struct {
	Kind       ErrorKind
	Status     int    // HTTP status to return to the downstream client
	Message    string
	UpstreamStatus int    // set when Kind == ErrKindUpstreamStatus; original upstream status
	UpstreamBody   []byte // set when Kind == ErrKindUpstreamStatus; original upstream body, proxied verbatim
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewModelNotFound(model string) *Error {
	return &Error{Kind: ErrKindModelNotFound, Status: 404, Message: fmt.Sprintf("model %q not found", model)}
}

func NewBadRequest(msg string) *Error {
	return &Error{Kind: ErrKindBadRequest, Status: 400, Message: msg}
}

func NewTransformError(msg string, cause error) *Error {
	return &Error{Kind: ErrKindTransform, Status: 500, Message: msg, Cause: cause}
}

func NewUpstreamTimeout(cause error) *Error {
	return &Error{Kind: ErrKindUpstreamTimeout, Status: 502, Message: "upstream request timed out", Cause: cause}
}

func NewUpstreamTransport(cause error) *Error {
	return &Error{Kind: ErrKindUpstreamTransport, Status: 502, Message: "upstream transport error", Cause: cause}
}

func NewUpstreamStatus(status int, body []byte) *Error {
	return &Error{
		Kind:           ErrKindUpstreamStatus,
		Status:         status,
		Message:        fmt.Sprintf("upstream returned status %d", status),
		UpstreamStatus: status,
		UpstreamBody:   body,
	}
}

func NewRetriesExhausted(last *Error) *Error {
	return &Error{
		Kind:           ErrKindRetriesExhausted,
		Status:         last.Status,
		Message:        "retries exhausted: " + last.Message,
		UpstreamStatus: last.UpstreamStatus,
		UpstreamBody:   last.UpstreamBody,
		Cause:          last,
	}
}

// errorType maps a kind to the dialect-specific "type" discriminator from
// the design: invalid_request_error, not_found_error, timeout_error, api_error.
func (k ErrorKind) errorType() string {
	switch k {
	case ErrKindBadRequest, ErrKindTransform:
		return "invalid_request_error"
	case ErrKindModelNotFound:
		return "not_found_error"
	case ErrKindUpstreamTimeout:
		return "timeout_error"
	default:
		return "api_error"
	}
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

type anthropicErrorBody struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// RenderBody renders the dialect-correct JSON error body. When the error
// carries a verbatim UpstreamBody (an UpstreamStatus or RetriesExhausted
// wrapping one), that body is proxied through unchanged instead.
func RenderBody(dialect Dialect, e *Error) []byte {
	if len(e.UpstreamBody) > 0 {
		return e.UpstreamBody
	}
	t := e.Kind.errorType()
	switch dialect {
	case DialectAnthropic:
		var body anthropicErrorBody
		body.Type = "error"
		body.Error.Type = t
		body.Error.Message = e.Message
		out, _ := json.Marshal(body)
		return out
	default: // DialectOpenAI and any openai-compatible dialect
		var body openAIErrorBody
		body.Error.Message = e.Message
		body.Error.Type = t
		body.Error.Code = string(e.Kind)
		out, _ := json.Marshal(body)
		return out
	}
}
