package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/luminote/luminote/domain/ledger"
	"github.com/luminote/luminote/ports"
)

// LedgerStore implements ports.LedgerStore using SQLite.
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a new SQLite ledger store.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// RecordSpend charges a confirmed spend against day. The day record and
// the balance move in one transaction; SQLite applies the increments
// natively so concurrent spends never lose an update.
func (s *LedgerStore) RecordSpend(ctx context.Context, spend ledger.Spend, day time.Time) error {
	if err := spend.Validate(); err != nil {
		return &ledger.CommitError{UserID: spend.UserID, Tokens: spend.Tokens, Cause: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.CommitError{UserID: spend.UserID, Tokens: spend.Tokens, Cause: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO token_usage (user_id, day, tokens_spent)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET
			tokens_spent = tokens_spent + excluded.tokens_spent
	`, spend.UserID, day.UTC(), spend.Tokens)
	if err != nil {
		return &ledger.CommitError{UserID: spend.UserID, Tokens: spend.Tokens, Cause: err}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET token_balance = token_balance - ?, updated_at = ?
		WHERE id = ?
	`, spend.Tokens, time.Now().UTC(), spend.UserID)
	if err != nil {
		return &ledger.CommitError{UserID: spend.UserID, Tokens: spend.Tokens, Cause: err}
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return &ledger.CommitError{UserID: spend.UserID, Tokens: spend.Tokens, Cause: err}
	}
	if rows == 0 {
		return &ledger.CommitError{UserID: spend.UserID, Tokens: spend.Tokens, Cause: fmt.Errorf("user %s: %w", spend.UserID, ErrNotFound)}
	}

	if err := tx.Commit(); err != nil {
		return &ledger.CommitError{UserID: spend.UserID, Tokens: spend.Tokens, Cause: err}
	}
	return nil
}

// Balance returns the user's current token balance.
func (s *LedgerStore) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `
		SELECT token_balance FROM users WHERE id = ?
	`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

// UsageBetween returns the usage records in [start, end).
func (s *LedgerStore) UsageBetween(ctx context.Context, userID string, start, end time.Time) ([]ledger.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, tokens_spent
		FROM token_usage
		WHERE user_id = ? AND day >= ? AND day < ?
		ORDER BY day
	`, userID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ledger.UsageRecord
	for rows.Next() {
		r := ledger.UsageRecord{UserID: userID}
		if err := rows.Scan(&r.Day, &r.TokensSpent); err != nil {
			return nil, err
		}
		r.Day = r.Day.UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Ensure interface compliance.
var _ ports.LedgerStore = (*LedgerStore)(nil)
