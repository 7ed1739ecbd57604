// Package transform implements the three request/response body transforms
// (regex rewrite, JSONPath drop, JSONPath add) and the ordered pipeline
// that applies them. Transforms are a closed, tagged set — exactly the
// three types below — not an open interface hierarchy: Transform's single
// method is unexported so no type outside this package can implement it.
package transform

import "encoding/json"

// Transform is one compiled, ordered pipeline step. The method is
// unexported: Regex, JSONPathDrop, and JSONPathAdd are the only
// implementations that will ever exist.
type Transform interface {
	apply(s *pipelineState) error
}

// pipelineState carries the lazily-parsed/reserialized body through one
// Pipeline.Run call.
type pipelineState struct {
	bytes  []byte
	doc    interface{}
	parsed bool // true once doc holds the parsed form of bytes
}

// ensureParsed lazily parses bytes into doc on the first JSONPath transform.
func (s *pipelineState) ensureParsed() error {
	if s.parsed {
		return nil
	}
	var doc interface{}
	if err := json.Unmarshal(s.bytes, &doc); err != nil {
		return err
	}
	s.doc = doc
	s.parsed = true
	return nil
}

// ensureSerialized lazily re-serializes doc into bytes before a regex
// transform or at the end of the pipeline, producing canonical JSON.
func (s *pipelineState) ensureSerialized() error {
	if !s.parsed {
		return nil
	}
	b, err := json.Marshal(s.doc)
	if err != nil {
		return err
	}
	s.bytes = b
	s.parsed = false
	return nil
}

// Pipeline is the ordered list of transforms applied to one request or
// response body. Ordering is fixed at config-load time and observable:
// transforms execute strictly in list order.
type Pipeline struct {
	Steps []Transform
}

// Run applies every step in order, lazily parsing the body into a JSON
// document on the first JSONPath transform and lazily re-serializing it
// before the next regex transform or at the end.
func (p Pipeline) Run(body []byte) ([]byte, error) {
	if len(p.Steps) == 0 {
		return body, nil
	}
	s := &pipelineState{bytes: body}
	for _, step := range p.Steps {
		if err := step.apply(s); err != nil {
			return nil, err
		}
	}
	if err := s.ensureSerialized(); err != nil {
		return nil, err
	}
	return s.bytes, nil
}
