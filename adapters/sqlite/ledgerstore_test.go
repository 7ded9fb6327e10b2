package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/luminote/luminote/domain/ledger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLedgerStore_RecordSpend(t *testing.T) {
	db := testDB(t)
	store := NewLedgerStore(db)
	ctx := context.Background()
	seedUser(t, db, "u1", 1000)

	today := day(2025, 6, 1)
	if err := store.RecordSpend(ctx, ledger.Spend{UserID: "u1", Tokens: 12}, today); err != nil {
		t.Fatalf("record: %v", err)
	}

	balance, err := store.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 988 {
		t.Errorf("balance = %d, want 988", balance)
	}

	records, err := store.UsageBetween(ctx, "u1", today, today.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(records) != 1 || records[0].TokensSpent != 12 {
		t.Errorf("records = %+v, want one record of 12", records)
	}
}

func TestLedgerStore_SameDayAccumulates(t *testing.T) {
	db := testDB(t)
	store := NewLedgerStore(db)
	ctx := context.Background()
	seedUser(t, db, "u1", 1000)

	today := day(2025, 6, 1)
	for _, n := range []int{10, 20, 30} {
		if err := store.RecordSpend(ctx, ledger.Spend{UserID: "u1", Tokens: n}, today); err != nil {
			t.Fatalf("record %d: %v", n, err)
		}
	}

	records, err := store.UsageBetween(ctx, "u1", today, today.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want one row per day", len(records))
	}
	if records[0].TokensSpent != 60 {
		t.Errorf("tokens = %d, want 60", records[0].TokensSpent)
	}

	balance, _ := store.Balance(ctx, "u1")
	if balance != 940 {
		t.Errorf("balance = %d, want 940", balance)
	}
}

func TestLedgerStore_SeparateDays(t *testing.T) {
	db := testDB(t)
	store := NewLedgerStore(db)
	ctx := context.Background()
	seedUser(t, db, "u1", 1000)

	d1, d2 := day(2025, 6, 1), day(2025, 6, 2)
	store.RecordSpend(ctx, ledger.Spend{UserID: "u1", Tokens: 5}, d1)
	store.RecordSpend(ctx, ledger.Spend{UserID: "u1", Tokens: 7}, d2)

	records, err := store.UsageBetween(ctx, "u1", d1, d2.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].TokensSpent != 5 || records[1].TokensSpent != 7 {
		t.Errorf("records = %+v", records)
	}
}

func TestLedgerStore_UsageBetweenHalfOpen(t *testing.T) {
	db := testDB(t)
	store := NewLedgerStore(db)
	ctx := context.Background()
	seedUser(t, db, "u1", 1000)

	d1, d2 := day(2025, 6, 1), day(2025, 6, 2)
	store.RecordSpend(ctx, ledger.Spend{UserID: "u1", Tokens: 5}, d1)
	store.RecordSpend(ctx, ledger.Spend{UserID: "u1", Tokens: 7}, d2)

	// End bound is exclusive.
	records, err := store.UsageBetween(ctx, "u1", d1, d2)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(records) != 1 || !records[0].Day.Equal(d1) {
		t.Errorf("records = %+v, want only %v", records, d1)
	}
}

func TestLedgerStore_UnknownUser(t *testing.T) {
	db := testDB(t)
	store := NewLedgerStore(db)
	ctx := context.Background()

	err := store.RecordSpend(ctx, ledger.Spend{UserID: "ghost", Tokens: 5}, day(2025, 6, 1))
	var commitErr *ledger.CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("err = %T, want *ledger.CommitError", err)
	}

	// The failed transaction must not leave a usage row behind.
	records, _ := store.UsageBetween(ctx, "ghost", day(2025, 6, 1), day(2025, 6, 2))
	if len(records) != 0 {
		t.Errorf("records = %+v, want none after rollback", records)
	}
}

func TestLedgerStore_InvalidSpend(t *testing.T) {
	db := testDB(t)
	store := NewLedgerStore(db)
	seedUser(t, db, "u1", 100)

	err := store.RecordSpend(context.Background(), ledger.Spend{UserID: "u1", Tokens: -3}, day(2025, 6, 1))
	var commitErr *ledger.CommitError
	if !errors.As(err, &commitErr) {
		t.Errorf("err = %T, want *ledger.CommitError", err)
	}
}

func TestLedgerStore_BalanceCanGoNegative(t *testing.T) {
	db := testDB(t)
	store := NewLedgerStore(db)
	ctx := context.Background()
	seedUser(t, db, "u1", 10)

	// The admission check happens before generation; the final spend is
	// charged in full even when it overshoots the balance.
	if err := store.RecordSpend(ctx, ledger.Spend{UserID: "u1", Tokens: 25}, day(2025, 6, 1)); err != nil {
		t.Fatalf("record: %v", err)
	}
	balance, _ := store.Balance(ctx, "u1")
	if balance != -15 {
		t.Errorf("balance = %d, want -15", balance)
	}
}
