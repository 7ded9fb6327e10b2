package llm

import "strings"

// Accumulator folds a delta-event sequence into a StreamResult while
// the events are forwarded to the live consumer. It preserves arrival
// order exactly and relies on the underlying stream being finite.
type Accumulator struct {
	text   strings.Builder
	tokens int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Observe records one event and returns it unchanged so callers can
// forward it downstream in the same statement.
func (a *Accumulator) Observe(ev DeltaEvent) DeltaEvent {
	switch ev.Kind {
	case EventContent:
		a.text.WriteString(ev.Text)
	case EventUsage:
		a.tokens = ev.TotalTokens
	}
	return ev
}

// Reset discards everything observed so far. The retry wrapper calls
// this when an attempt fails mid-stream so the final result reflects
// only the successful attempt.
func (a *Accumulator) Reset() {
	a.text.Reset()
	a.tokens = 0
}

// Result returns the accumulated stream result. Call it only after the
// stream is exhausted.
func (a *Accumulator) Result() StreamResult {
	return StreamResult{
		FullText:    a.text.String(),
		TotalTokens: a.tokens,
	}
}
