package llm

import "strings"

// Strategy selects how a provider's raw chunks map to delta events.
// The choice follows from provider identity, not from the feature
// calling the provider.
type Strategy int

const (
	// StrategyPassThrough is for providers that already send true
	// deltas per chunk.
	StrategyPassThrough Strategy = iota

	// StrategySuffixDiff is for providers that resend the full
	// accumulated text on every chunk. The normalizer diffs against
	// the previous chunk and emits only the new suffix.
	StrategySuffixDiff
)

// Normalizer translates raw provider chunks into the canonical
// DeltaEvent sequence. One Normalizer serves exactly one stream; it is
// not safe for concurrent use and must not be reused across streams.
type Normalizer struct {
	strategy Strategy
	prev     string
	usage    bool
}

// NewNormalizer returns a fresh normalizer for a single stream.
func NewNormalizer(strategy Strategy) *Normalizer {
	return &Normalizer{strategy: strategy}
}

// Normalize maps one raw chunk to zero or more delta events, in order.
// A usage count found anywhere in the stream yields a single EventUsage
// after that chunk's content; later counts overwrite nothing because
// only one is ever emitted.
func (n *Normalizer) Normalize(chunk RawChunk) ([]DeltaEvent, error) {
	var events []DeltaEvent

	switch n.strategy {
	case StrategySuffixDiff:
		cur := chunk.Content
		if !strings.HasPrefix(cur, n.prev) {
			return nil, ErrNonMonotonicChunk
		}
		if delta := cur[len(n.prev):]; delta != "" {
			events = append(events, ContentEvent(delta))
		}
		n.prev = cur

	case StrategyPassThrough:
		if chunk.Content != "" {
			events = append(events, ContentEvent(chunk.Content))
		}
	}

	if chunk.HasUsage && !n.usage {
		n.usage = true
		events = append(events, UsageEvent(chunk.TotalTokens))
	}

	return events, nil
}
