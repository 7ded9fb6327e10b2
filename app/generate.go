// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/adapters/metrics"
	"github.com/luminote/luminote/domain/ledger"
	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/domain/retry"
	"github.com/luminote/luminote/ports"
)

// ErrInsufficientBalance rejects a billed request before any upstream
// call is made.
var ErrInsufficientBalance = errors.New("insufficient token balance")

// ErrRateLimited rejects a request that exceeds its fixed window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Sink receives normalized delta events bound for the client. Reset is
// called when a failed attempt is being retried: the sink must discard
// any state tied to the aborted attempt. Bytes already written to the
// wire cannot be recalled; only the successful attempt's content is
// persisted and billed.
type Sink interface {
	Emit(ev llm.DeltaEvent) error
	Reset()
}

// GenerateService runs billed model invocations: the balance guard,
// the retry loop around the upstream call, normalization, accumulation
// and the single ledger update per completed stream.
type GenerateService struct {
	ledger  ports.LedgerStore
	clock   ports.Clock
	policy  retry.Policy
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// GenerateDeps contains dependencies for GenerateService.
type GenerateDeps struct {
	Ledger  ports.LedgerStore
	Clock   ports.Clock
	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

// NewGenerateService creates a new generation service.
func NewGenerateService(deps GenerateDeps, policy retry.Policy) *GenerateService {
	return &GenerateService{
		ledger:  deps.Ledger,
		clock:   deps.Clock,
		policy:  policy,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

func (s *GenerateService) guardBalance(ctx context.Context, userID string) error {
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if !ledger.CanSpend(balance) {
		return ErrInsufficientBalance
	}
	return nil
}

// Stream runs one streaming generation for userID and forwards delta
// events to sink. A failed attempt resets the sink and the accumulated
// text, then the whole upstream call is reopened; the result reflects
// only the attempt that completed.
func (s *GenerateService) Stream(ctx context.Context, userID string, provider ports.TextProvider, msgs []llm.Message, sink Sink) (llm.StreamResult, error) {
	if err := s.guardBalance(ctx, userID); err != nil {
		return llm.StreamResult{}, err
	}

	acc := llm.NewAccumulator()
	attempt := func(ctx context.Context) error {
		stream, err := provider.Stream(ctx, msgs)
		if err != nil {
			return err
		}
		defer stream.Close()

		norm := llm.NewNormalizer(provider.Strategy())
		for {
			chunk, err := stream.Recv()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			events, err := norm.Normalize(chunk)
			if err != nil {
				return err
			}
			for _, ev := range events {
				acc.Observe(ev)
				if err := sink.Emit(ev); err != nil {
					return err
				}
				s.metrics.StreamChunks.WithLabelValues(provider.Name()).Inc()
			}
		}
	}
	reset := func() {
		acc.Reset()
		sink.Reset()
		s.metrics.StreamRetries.WithLabelValues(provider.Name()).Inc()
	}

	if err := s.policy.DoWithReset(ctx, attempt, reset); err != nil {
		return llm.StreamResult{}, err
	}

	result := acc.Result()
	s.recordSpend(ctx, userID, provider.Name(), result.TotalTokens)
	return result, nil
}

// Complete runs one non-streaming billed generation.
func (s *GenerateService) Complete(ctx context.Context, userID string, provider ports.TextProvider, msgs []llm.Message) (llm.Completion, error) {
	if err := s.guardBalance(ctx, userID); err != nil {
		return llm.Completion{}, err
	}

	var completion llm.Completion
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		completion, err = provider.Complete(ctx, msgs)
		return err
	})
	if err != nil {
		return llm.Completion{}, err
	}

	s.recordSpend(ctx, userID, provider.Name(), completion.TotalTokens)
	return completion, nil
}

// recordSpend applies the single ledger update for a completed
// invocation. A zero count is a no-op; a commit failure is logged for
// reconciliation but never erases content already delivered.
func (s *GenerateService) recordSpend(ctx context.Context, userID, providerName string, tokens int) {
	spend := ledger.Spend{UserID: userID, Tokens: tokens}
	if spend.IsZero() {
		return
	}
	if err := s.ledger.RecordSpend(ctx, spend, ledger.DayOf(s.clock.Now())); err != nil {
		s.metrics.LedgerFailures.Inc()
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Int("tokens", tokens).
			Msg("ledger commit failed after completed generation")
		return
	}
	s.metrics.TokensSpent.WithLabelValues(providerName).Add(float64(tokens))
}
