// Package ratelimit provides the pure fixed-window counter math shared
// by the in-memory limiter. Same input always produces same output;
// state persistence is the caller's job.
package ratelimit

import "time"

// WindowState is the counter for one key's current window.
type WindowState struct {
	Count     int       // requests observed in the current window
	WindowEnd time.Time // when the current window lapses
}

// Config holds the limiter parameters.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Check performs a fixed-window rate limit check. The first request of
// a window starts a fresh counter expiring after cfg.Window; requests
// at or past MaxRequests are denied until the window lapses.
//
// Returns the result and the updated state the caller must persist.
func Check(state WindowState, cfg Config, now time.Time) (CheckResult, WindowState) {
	if state.WindowEnd.IsZero() || now.After(state.WindowEnd) {
		state = WindowState{WindowEnd: now.Add(cfg.Window)}
	}

	if state.Count >= cfg.MaxRequests {
		return CheckResult{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   state.WindowEnd,
		}, state
	}

	state.Count++
	return CheckResult{
		Allowed:   true,
		Remaining: cfg.MaxRequests - state.Count,
		ResetAt:   state.WindowEnd,
	}, state
}

// RetryAfter returns how long a denied caller should wait.
func RetryAfter(result CheckResult, now time.Time) time.Duration {
	if result.Allowed {
		return 0
	}
	d := result.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
