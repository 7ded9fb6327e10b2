package llm

// EventKind discriminates the DeltaEvent union.
type EventKind int

const (
	// EventContent carries one incremental text fragment, never the
	// accumulated text. Concatenating all content fragments in arrival
	// order reconstructs the response exactly once.
	EventContent EventKind = iota

	// EventUsage is terminal: at most one per stream, may be absent.
	EventUsage
)

// DeltaEvent is one unit of a normalized stream.
type DeltaEvent struct {
	Kind        EventKind
	Text        string // set for EventContent
	TotalTokens int    // set for EventUsage
}

// ContentEvent returns a content fragment event.
func ContentEvent(text string) DeltaEvent {
	return DeltaEvent{Kind: EventContent, Text: text}
}

// UsageEvent returns a terminal token-count event.
func UsageEvent(totalTokens int) DeltaEvent {
	return DeltaEvent{Kind: EventUsage, TotalTokens: totalTokens}
}

// RawChunk is the provider-shape-independent unit a provider adapter
// yields before normalization. Content is either a true delta or the
// full accumulated text, depending on the provider.
type RawChunk struct {
	Content     string
	TotalTokens int
	HasUsage    bool
}

// StreamResult is what the Accumulator produces once a stream is
// exhausted.
type StreamResult struct {
	FullText    string
	TotalTokens int // 0 when the provider never reported usage
}

// Completion is a non-streaming provider result.
type Completion struct {
	Text        string
	TotalTokens int
}

// ChunkStream is a lazy, finite, non-restartable sequence of raw
// provider chunks. Recv returns io.EOF after the last chunk. A stream
// may fail mid-sequence; chunks already received remain valid.
type ChunkStream interface {
	Recv() (RawChunk, error)
	Close() error
}
