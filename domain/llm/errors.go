package llm

import (
	"errors"
	"fmt"
)

// ErrNonMonotonicChunk is returned by the suffix-diff strategy when a
// chunk's content does not extend the previous chunk's content by
// suffix. The stream cannot be diffed safely past that point; the
// caller treats it like any other upstream fault and retries the whole
// call.
var ErrNonMonotonicChunk = errors.New("llm: chunk content is not a prefix extension of previous chunk")

// ErrStreamClosed is returned by Recv after Close.
var ErrStreamClosed = errors.New("llm: stream closed")

// UpstreamError reports a non-success status or connection failure
// from a provider.
type UpstreamError struct {
	Provider string
	Status   int // 0 for transport failures
	Cause    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm: %s returned status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("llm: %s call failed: %v", e.Provider, e.Cause)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// ParseError reports model output that could not be decoded into the
// expected structure. It is recoverable: malformed stream lines are
// skipped, malformed structured output is surfaced to the caller but
// never executed.
type ParseError struct {
	What  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm: parse %s: %v", e.What, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }
