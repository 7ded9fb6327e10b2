package http

import (
	"fmt"
	"net/http"

	"github.com/luminote/luminote/app"
	"github.com/luminote/luminote/domain/llm"
)

// SSEWriter streams delta events to one client connection using the
// line protocol: `data: <fragment>` per content delta, `data:
// [TOKENS:<n>]` for the usage count, terminal `data: [DONE]`. Every
// line is flushed immediately.
//
// Reset is a no-op on the wire: bytes already sent cannot be recalled.
// The client replaces its buffer when the retried stream re-emits from
// the start; persisted content and billing always reflect only the
// successful attempt.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewSSEWriter prepares w for event streaming. It returns an error if
// the underlying writer cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	return &SSEWriter{w: w, flusher: flusher}, nil
}

func (s *SSEWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Credentials", "true")
	s.w.WriteHeader(http.StatusOK)
}

// writeLine frames one payload as a single data line. Payloads are
// written as-is: a fragment containing a newline leaves its
// continuation without the data prefix, which clients of this
// protocol tolerate but a strict SSE parser would drop.
func (s *SSEWriter) writeLine(payload string) error {
	s.start()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Emit writes one delta event.
func (s *SSEWriter) Emit(ev llm.DeltaEvent) error {
	switch ev.Kind {
	case llm.EventContent:
		return s.writeLine(ev.Text)
	case llm.EventUsage:
		return s.writeLine(fmt.Sprintf("[TOKENS:%d]", ev.TotalTokens))
	}
	return nil
}

// Reset implements app.Sink.
func (s *SSEWriter) Reset() {}

// Done writes the terminal sentinel.
func (s *SSEWriter) Done() error {
	return s.writeLine("[DONE]")
}

// Fail writes a final failure message followed by the sentinel. The
// stream has already started, so a 5xx is no longer possible.
func (s *SSEWriter) Fail(msg string) {
	_ = s.writeLine(msg)
	_ = s.Done()
}

// Ensure interface compliance.
var _ app.Sink = (*SSEWriter)(nil)
