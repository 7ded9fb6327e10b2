// Package retry provides a bounded retry policy with linear backoff.
//
// The policy wraps whole operations. For streamed generation that means
// re-invoking the upstream call from scratch: partial streams cannot be
// resumed, so an attempt that fails mid-stream is discarded entirely
// (the reset hook) and the retried attempt replaces it. Replacement,
// not concatenation.
package retry

import (
	"context"
	"time"
)

// Policy bounds an operation to MaxRetries attempts with a delay of
// BaseDelay*k before retry k.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultPolicy matches the generation endpoints: three attempts, one
// second base delay.
var DefaultPolicy = Policy{MaxRetries: 3, BaseDelay: time.Second}

// Do runs op until it succeeds or attempts are exhausted, returning the
// last failure. A canceled context stops retrying immediately.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	return p.DoWithReset(ctx, op, nil)
}

// DoWithReset is Do with a hook invoked before every retry so the
// caller can discard state accumulated by the failed attempt.
func (p Policy) DoWithReset(ctx context.Context, op func(context.Context) error, reset func()) error {
	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		if reset != nil {
			reset()
		}
		if err := sleep(ctx, p.BaseDelay*time.Duration(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
