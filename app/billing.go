package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/domain/ledger"
	"github.com/luminote/luminote/ports"
)

const biweeklyTTL = 30 * time.Minute

// BillingService is the balance and usage query surface consumed by
// the CRUD layer and the CLI.
type BillingService struct {
	ledger ports.LedgerStore
	cache  ports.Cache
	clock  ports.Clock
	logger zerolog.Logger
}

// BillingDeps contains dependencies for BillingService.
type BillingDeps struct {
	Ledger ports.LedgerStore
	Cache  ports.Cache
	Clock  ports.Clock
	Logger zerolog.Logger
}

// NewBillingService creates a new billing service.
func NewBillingService(deps BillingDeps) *BillingService {
	return &BillingService{
		ledger: deps.Ledger,
		cache:  deps.Cache,
		clock:  deps.Clock,
		logger: deps.Logger,
	}
}

// CurrentBalance returns the user's token balance.
func (s *BillingService) CurrentBalance(ctx context.Context, userID string) (int, error) {
	return s.ledger.Balance(ctx, userID)
}

// RecordSpend charges tokens against today. Zero is an idempotent
// no-op.
func (s *BillingService) RecordSpend(ctx context.Context, userID string, tokens int) error {
	spend := ledger.Spend{UserID: userID, Tokens: tokens}
	if spend.IsZero() {
		return nil
	}
	return s.ledger.RecordSpend(ctx, spend, ledger.DayOf(s.clock.Now()))
}

func biweeklyKey(userID string) string { return "token:usage:biweekly:" + userID }

// BiweeklyUsage returns the user's per-day usage over the last 14
// days, cached for 30 minutes.
func (s *BillingService) BiweeklyUsage(ctx context.Context, userID string) ([]ledger.UsageRecord, error) {
	if raw, ok := s.cache.Get(ctx, biweeklyKey(userID)); ok {
		var records []ledger.UsageRecord
		if err := json.Unmarshal(raw, &records); err == nil {
			return records, nil
		}
		s.cache.Delete(ctx, biweeklyKey(userID))
	}

	start, end := ledger.BiweeklyRange(s.clock.Now())
	records, err := s.ledger.UsageBetween(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(records); err == nil {
		s.cache.Set(ctx, biweeklyKey(userID), raw, biweeklyTTL)
	}
	return records, nil
}
