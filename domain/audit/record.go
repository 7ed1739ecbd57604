// Package audit implements the request logger's pure record shape and
// redaction rules; domain/audit never touches zerolog or I/O itself, it
// only produces the values a logging adapter writes out.
package audit

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Record is one completed request's structured log entry. Headers and
// Body are populated only when body/header logging is enabled in
// configuration; both are already redacted and truncated by the time
// they reach a Record, so a logging adapter can attach them verbatim.
type Record struct {
	Timestamp     string
	ClientIP      string
	Method        string
	Path          string
	Model         string
	BackendModel  string
	UpstreamURL   string
	UpstreamStatus int
	DurationMs    int64
	BytesIn       int64
	BytesOut      int64
	RetryCount    int
	ErrorKind     string // empty when the request succeeded
	Headers       map[string]string // nil unless body/header logging is enabled
	Body          []byte            // nil unless body/header logging is enabled
}

// redactedPatterns are the case-insensitive header/field name patterns
// whose values are replaced with "[REDACTED]" before logging. A suffix
// pattern matches the bare name or any name ending in "-" or "_" plus the
// suffix ("token", "X-Auth-Token", "access_token"), and "api-key" also
// matches "api_key"; these compile to anchored regexes once at init.
var redactedPatterns = compileRedactedPatterns([]string{
	"authorization",
	"(.*[-_])?api[-_]key",
	"apikey",
	"(.*[-_])?token",
	"(.*[-_])?password",
	"(.*[-_])?secret",
})

func compileRedactedPatterns(globs []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(globs))
	for _, g := range globs {
		out = append(out, regexp.MustCompile("(?i)^"+g+"$"))
	}
	return out
}

// IsSensitiveName reports whether a header or JSON field name matches one
// of the redacted patterns.
func IsSensitiveName(name string) bool {
	for _, p := range redactedPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

const redactedValue = "[REDACTED]"

// RedactHeaders returns a copy of headers with sensitive values replaced.
func RedactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if IsSensitiveName(k) {
			out[k] = redactedValue
		} else {
			out[k] = v
		}
	}
	return out
}

// RedactJSONBody walks a decoded JSON value (the shape encoding/json
// produces: map[string]interface{}, []interface{}, or a scalar) and
// replaces every value whose object key matches a sensitive pattern.
func RedactJSONBody(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			if IsSensitiveName(k) {
				out[k] = redactedValue
			} else {
				out[k] = RedactJSONBody(vv)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = RedactJSONBody(vv)
		}
		return out
	default:
		return v
	}
}

// RedactBody prepares a raw request/response body for logging: JSON
// bodies get field-level redaction before truncation; a body that fails
// to parse as JSON is truncated only.
func RedactBody(body []byte) []byte {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err == nil {
		redacted := RedactJSONBody(doc)
		if out, merr := json.Marshal(redacted); merr == nil {
			return TruncateBody(out)
		}
	}
	return TruncateBody(body)
}

const maxBodyBytes = 64 * 1024

// TruncateBody caps body at 64 KiB, appending a marker noting how many
// bytes were dropped.
func TruncateBody(body []byte) []byte {
	if len(body) <= maxBodyBytes {
		return body
	}
	dropped := len(body) - maxBodyBytes
	marker := fmt.Sprintf("[TRUNCATED %d bytes]", dropped)
	out := make([]byte, 0, maxBodyBytes+len(marker))
	out = append(out, body[:maxBodyBytes]...)
	out = append(out, []byte(marker)...)
	return out
}
