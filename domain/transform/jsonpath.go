package transform

import "strings"

// jsonPath is the narrow surface this package needs from a JSONPath
// engine: parse once, then get/set/delete against a generic JSON tree
// (the same map[string]interface{}/[]interface{}/scalar shape
// encoding/json produces). The ojg/jp implementation is wired in by
// newJSONPath in jsonpath_ojg.go.
type jsonPath interface {
	// Get returns every node the path currently matches.
	Get(doc interface{}) []interface{}
	// Set replaces every matching node with value, creating the missing
	// chain first when the path is a pure dot/bracket expression (no
	// filter or wildcard) that currently matches nothing.
	Set(doc interface{}, value interface{}) error
	// Del removes every matching node (object key, or array element with
	// indices resolved high-to-low within one pass).
	Del(doc interface{}) error
}

// hasFilterOrWildcard reports whether a raw JSONPath expression contains a
// filter (`[?(...)]`) or wildcard (`*`) segment. Pure dot/bracket paths
// (no filter, no wildcard) are the only ones JSONPathAdd will auto-vivify
// when they match nothing.
func hasFilterOrWildcard(raw string) bool {
	return strings.ContainsAny(raw, "*?")
}

// isRootPath reports whether the raw path addresses only the document
// root itself.
func isRootPath(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "$" || trimmed == "@"
}

// JSONPathDrop removes every node a compiled JSONPath matches.
type JSONPathDrop struct {
	raw  string
	path jsonPath
}

// NewJSONPathDrop compiles path once; compilation failure is reported at
// config-load time.
func NewJSONPathDrop(path string) (*JSONPathDrop, error) {
	p, err := newJSONPath(path)
	if err != nil {
		return nil, err
	}
	return &JSONPathDrop{raw: path, path: p}, nil
}

func (d *JSONPathDrop) apply(s *pipelineState) error {
	if err := s.ensureParsed(); err != nil {
		return err
	}
	if isRootPath(d.raw) {
		// Matching the document root is a no-op.
		return nil
	}
	return d.path.Del(s.doc)
}

// JSONPathAdd sets every node a compiled JSONPath matches to a deep copy
// of value, creating the missing chain for a pure dot/bracket path that
// currently matches nothing.
type JSONPathAdd struct {
	raw   string
	path  jsonPath
	value interface{}
}

// NewJSONPathAdd compiles path once and stores the configured value to
// deep-copy on every apply.
func NewJSONPathAdd(path string, value interface{}) (*JSONPathAdd, error) {
	p, err := newJSONPath(path)
	if err != nil {
		return nil, err
	}
	return &JSONPathAdd{raw: path, path: p, value: value}, nil
}

func (a *JSONPathAdd) apply(s *pipelineState) error {
	if err := s.ensureParsed(); err != nil {
		return err
	}
	if len(a.path.Get(s.doc)) == 0 && hasFilterOrWildcard(a.raw) {
		// A filter/wildcard path matching nothing is a silent no-op: there
		// is no single concrete location to create.
		return nil
	}
	return a.path.Set(s.doc, deepCopyJSON(a.value))
}

// deepCopyJSON recursively copies a decoded-JSON value tree so that
// setting the same configured value at multiple match locations never
// lets one location's later mutation (there is none in this proxy, but
// the contract promises independence) leak into another.
func deepCopyJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = deepCopyJSON(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = deepCopyJSON(vv)
		}
		return out
	default:
		// string, float64, bool, nil: value types, already independent.
		return v
	}
}
