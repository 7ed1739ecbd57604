package streaming

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/artpar/llmproxy/domain/transform"
)

// eventDelimiter is the SSE frame boundary: a blank line ends one event.
const eventDelimiter = "\n\n"

// doneSentinel is OpenAI's terminal streaming frame; it is forwarded
// verbatim and never parsed as JSON, regardless of configured transforms.
const doneSentinel = "data: [DONE]"

// Flusher is the subset of http.Flusher the forwarder needs, so it can be
// exercised against a plain io.Writer in tests.
type Flusher interface {
	Flush()
}

// Forwarder incrementally reads an upstream byte stream, reframes it on
// "\n\n" boundaries, applies the per-event response transform contract to
// each event's data payload, and writes+flushes one event at a time. It
// never buffers the whole response, and a partial event still in the
// accumulator when the upstream read ends is discarded.
type Forwarder struct {
	Transforms []transform.Transform
}

// Forward reads from src until EOF or ctx cancellation, writing each
// complete transformed event to dst and flushing after every one. It
// returns the total bytes written downstream.
func (f Forwarder) Forward(ctx context.Context, dst io.Writer, flusher Flusher, src io.Reader) (int64, error) {
	var written int64
	var acc bytes.Buffer
	buf := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			for {
				frame, ok := extractFrame(&acc)
				if !ok {
					break
				}
				out := f.transformFrame(frame)
				nw, writeErr := dst.Write(out)
				written += int64(nw)
				if writeErr != nil {
					return written, writeErr
				}
				if flusher != nil {
					flusher.Flush()
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}

// extractFrame pulls one complete "\n\n"-delimited frame (including the
// trailing delimiter) off the front of acc, if one is present.
func extractFrame(acc *bytes.Buffer) (frame []byte, ok bool) {
	b := acc.Bytes()
	idx := bytes.Index(b, []byte(eventDelimiter))
	if idx == -1 {
		return nil, false
	}
	end := idx + len(eventDelimiter)
	frame = make([]byte, end)
	copy(frame, b[:end])
	acc.Next(end)
	return frame, true
}

// transformFrame applies the response transform list to one event frame's
// data payload(s), leaving event/id/retry lines and frame structure
// otherwise untouched. The OpenAI "[DONE]" sentinel and any frame with no
// data line pass through unchanged.
func (f Forwarder) transformFrame(frame []byte) []byte {
	if strings.Contains(string(frame), doneSentinel) {
		return frame
	}
	if len(f.Transforms) == 0 {
		return frame
	}

	lines := strings.Split(strings.TrimSuffix(string(frame), eventDelimiter), "\n")
	var dataParts []string
	var dataLineIdx []int
	for i, line := range lines {
		if strings.HasPrefix(line, "data:") {
			dataLineIdx = append(dataLineIdx, i)
			v := strings.TrimPrefix(line, "data:")
			v = strings.TrimPrefix(v, " ")
			dataParts = append(dataParts, v)
		}
	}
	if len(dataParts) == 0 {
		return frame
	}

	original := strings.Join(dataParts, "\n")
	transformed := string(transform.ApplyPerSSEEvent(f.Transforms, []byte(original)))

	var out strings.Builder
	written := false
	for i, line := range lines {
		if isDataLine(i, dataLineIdx) {
			if !written {
				for _, part := range strings.Split(transformed, "\n") {
					out.WriteString("data: ")
					out.WriteString(part)
					out.WriteString("\n")
				}
				written = true
			}
			continue
		}
		out.WriteString(line)
		out.WriteString("\n")
	}
	out.WriteString("\n")
	return []byte(out.String())
}

func isDataLine(i int, dataLineIdx []int) bool {
	for _, idx := range dataLineIdx {
		if idx == i {
			return true
		}
	}
	return false
}
