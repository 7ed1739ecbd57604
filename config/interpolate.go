package config

import (
	"fmt"
	"os"
	"strings"
)

// interpolate resolves every ${VAR} and ${VAR:-default} placeholder in s
// against the process environment. ${VAR} with VAR unset is an error;
// ${VAR:-default} falls back to default (itself not further interpolated)
// when VAR is unset or empty. Unlike os.ExpandEnv, this distinguishes
// "unset, and no default given" from "unset, with a default" — ExpandEnv
// can express neither.
func interpolate(s string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start < 0 {
			out.WriteString(s[i:])
			break
		}
		start += i
		out.WriteString(s[i:start])

		end := strings.IndexByte(s[start+2:], '}')
		if end < 0 {
			return "", fmt.Errorf("config: unterminated ${...} starting at byte %d", start)
		}
		end += start + 2

		expr := s[start+2 : end]
		resolved, err := resolvePlaceholder(expr)
		if err != nil {
			return "", err
		}
		out.WriteString(resolved)
		i = end + 1
	}
	return out.String(), nil
}

// resolvePlaceholder resolves the inside of one ${...}: either a bare
// VAR or a VAR:-default form.
func resolvePlaceholder(expr string) (string, error) {
	if name, def, ok := strings.Cut(expr, ":-"); ok {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
		return def, nil
	}
	v, ok := os.LookupEnv(expr)
	if !ok {
		return "", fmt.Errorf("config: required environment variable %q is not set", expr)
	}
	return v, nil
}

// interpolateStringLeaves walks a raw config tree (the shape produced by
// decoding YAML/JSON into interface{} maps and slices) and interpolates
// every string leaf in place, returning a new tree. Used before the
// strongly-typed decode so that every string field, not just the ones
// this package happens to know about, is resolved.
func interpolateStringLeaves(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return interpolate(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			r, err := interpolateStringLeaves(vv)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			r, err := interpolateStringLeaves(vv)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}
