package transform

import "regexp"

// Regex is a pre-compiled pattern -> replacement rewrite applied to the
// textual representation of a body. Go's regexp operates directly on
// []byte: bytes outside a match are copied through unmodified regardless
// of whether they form valid UTF-8, so invalid UTF-8 in the surrounding
// text survives a Regex transform unchanged. Replacement text supports
// $1..$9 (or $name) backreferences and a literal "$" as "$$", exactly as
// regexp.Expand documents — the same semantics this transform exposes.
type Regex struct {
	pattern     *regexp.Regexp
	replacement []byte
}

// NewRegex compiles pattern once; compilation failure is reported at
// config-load time, never at request time.
func NewRegex(pattern, replacement string) (*Regex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Regex{pattern: re, replacement: []byte(replacement)}, nil
}

func (r *Regex) apply(s *pipelineState) error {
	if err := s.ensureSerialized(); err != nil {
		return err
	}
	// ReplaceAll replaces left-to-right, non-overlapping, and never
	// re-scans replacement output: exactly the non-recursive semantics
	// the transform contract requires.
	s.bytes = r.pattern.ReplaceAll(s.bytes, r.replacement)
	return nil
}

// ApplyBytes runs this transform standalone, outside a Pipeline — used by
// the streaming forwarder, which applies response transforms per SSE
// event rather than through the full Pipeline/lazy-parse machinery.
func (r *Regex) ApplyBytes(data []byte) []byte {
	return r.pattern.ReplaceAll(data, r.replacement)
}
