package transform

// ApplyPerSSEEvent runs steps against a single SSE event's data payload
// under the streaming contract: regex transforms always apply to the raw
// payload; a JSONPath transform fires only when the payload currently
// parses as JSON, and is silently skipped (payload left unchanged)
// otherwise — unlike Pipeline.Run, a parse failure here is never an
// error, since most streamed payloads are JSON but sentinel frames like
// OpenAI's "[DONE]" are not.
func ApplyPerSSEEvent(steps []Transform, data []byte) []byte {
	result := data
	for _, step := range steps {
		if r, ok := step.(*Regex); ok {
			result = r.ApplyBytes(result)
			continue
		}

		s := &pipelineState{bytes: result}
		if err := s.ensureParsed(); err != nil {
			continue // not JSON: this step is skipped, not an error
		}
		if err := step.apply(s); err != nil {
			continue
		}
		if err := s.ensureSerialized(); err != nil {
			continue
		}
		result = s.bytes
	}
	return result
}
