// Package ledger provides the value types and pure helpers for
// token-metered billing: per-day usage records and the per-user
// balance. Persistence and atomicity live in the store adapter; both
// mutations of one spend commit together or not at all.
package ledger

import (
	"fmt"
	"time"
)

// UsageRecord is the accumulated token spend of one user on one UTC
// calendar day. Records are created lazily and only ever grow by
// addition, never overwritten.
type UsageRecord struct {
	UserID      string
	Day         time.Time // UTC midnight
	TokensSpent int
}

// Spend is one confirmed charge produced by a completed stream.
type Spend struct {
	UserID string
	Tokens int
}

// IsZero reports whether recording this spend would be a no-op.
func (s Spend) IsZero() bool { return s.Tokens == 0 }

// Validate rejects spends the pipeline should never produce.
func (s Spend) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("ledger: spend without user id")
	}
	if s.Tokens < 0 {
		return fmt.Errorf("ledger: negative spend %d for user %s", s.Tokens, s.UserID)
	}
	return nil
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// CanSpend is the pre-flight guard for any billed pipeline. It is a
// cheap check, not a reservation: a single in-flight request may still
// push the balance negative, which blocks subsequent requests.
func CanSpend(balance int) bool { return balance > 0 }

// BiweeklyRange returns the half-open [start, end) covering the last
// 14 calendar days up to and including now's day.
func BiweeklyRange(now time.Time) (start, end time.Time) {
	end = DayOf(now).AddDate(0, 0, 1)
	start = end.AddDate(0, 0, -14)
	return start, end
}

// CommitError reports a failed balance/usage transaction. The charge
// was rolled back; it is logged for offline reconciliation and never
// erases content already delivered to the client.
type CommitError struct {
	UserID string
	Tokens int
	Cause  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("ledger: commit %d tokens for user %s: %v", e.Tokens, e.UserID, e.Cause)
}

func (e *CommitError) Unwrap() error { return e.Cause }
