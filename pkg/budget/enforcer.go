package budget

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Storage handles persistence of the node's loss budget.
type Storage interface {
	Get(ctx context.Context) (*Budget, error)
	Set(ctx context.Context, budget *Budget) error
	Limits(ctx context.Context) (daily, monthly int64, err error)
	SetLimits(ctx context.Context, daily, monthly int64) error
}

// SimpleEnforcer implements fail-closed loss budget enforcement.
type SimpleEnforcer struct {
	storage Storage
}

// NewSimpleEnforcer creates a new enforcer with the given storage.
func NewSimpleEnforcer(s Storage) *SimpleEnforcer {
	return &SimpleEnforcer{
		storage: s,
	}
}

func (e *SimpleEnforcer) GetBudget(ctx context.Context) (*Budget, error) {
	return e.storage.Get(ctx)
}

func (e *SimpleEnforcer) SetLimits(ctx context.Context, daily, monthly int64) error {
	return e.storage.SetLimits(ctx, daily, monthly)
}

func (e *SimpleEnforcer) RecordSpend(ctx context.Context, cost Cost) error {
	// Check() already reserves the budget; nothing further to record.
	return nil
}

// Check verifies if a loss can be incurred. Fails closed on errors.
func (e *SimpleEnforcer) Check(ctx context.Context, cost Cost) (*Decision, error) {
	b, err := e.storage.Get(ctx)
	if err != nil {
		log.Printf("budget: check failed: %v", err)
		return &Decision{
			Allowed:   false,
			Reason:    fmt.Sprintf("check failed: %v", err),
			Remaining: nil,
			Receipt:   e.createReceipt("denied", cost.Amount, "internal_error"),
		}, err
	}

	if b == nil {
		daily, monthly, err := e.storage.Limits(ctx)
		if err != nil {
			log.Printf("budget: failed to fetch limits: %v", err)
			return &Decision{
				Allowed: false,
				Reason:  "failed to fetch limits",
				Receipt: e.createReceipt("denied", cost.Amount, "limit_fetch_error"),
			}, err
		}
		b = &Budget{
			DailyLimit:   daily,
			MonthlyLimit: monthly,
			LastUpdated:  time.Now(),
		}
	}

	// Reset counters on period rollover. Timezone/boundary handling is
	// intentionally naive: this is a coarse, always-on backstop, not the
	// precise drawdown calculation the kill switch's decision phase reads.
	now := time.Now().UTC()
	if now.Day() != b.LastUpdated.Day() {
		b.DailyUsed = 0
	}
	if now.Month() != b.LastUpdated.Month() {
		b.MonthlyUsed = 0
	}

	newDaily := b.DailyUsed + cost.Amount
	newMonthly := b.MonthlyUsed + cost.Amount

	if newDaily > b.DailyLimit {
		log.Printf("budget: daily loss limit exceeded: %d > %d", newDaily, b.DailyLimit)
		return &Decision{
			Allowed:   false,
			Reason:    fmt.Sprintf("daily loss limit exceeded: %d > %d", newDaily, b.DailyLimit),
			Remaining: b,
			Receipt:   e.createReceipt("denied", cost.Amount, "daily_limit_exceeded"),
		}, nil
	}

	if newMonthly > b.MonthlyLimit {
		log.Printf("budget: monthly loss limit exceeded: %d > %d", newMonthly, b.MonthlyLimit)
		return &Decision{
			Allowed:   false,
			Reason:    fmt.Sprintf("monthly loss limit exceeded: %d > %d", newMonthly, b.MonthlyLimit),
			Remaining: b,
			Receipt:   e.createReceipt("denied", cost.Amount, "monthly_limit_exceeded"),
		}, nil
	}

	b.DailyUsed = newDaily
	b.MonthlyUsed = newMonthly
	b.LastUpdated = now

	if err := e.storage.Set(ctx, b); err != nil {
		log.Printf("budget: failed to persist usage: %v", err)
		return &Decision{
			Allowed: false,
			Reason:  "failed to persist usage",
			Receipt: e.createReceipt("denied", cost.Amount, "persistence_error"),
		}, err
	}

	return &Decision{
		Allowed:   true,
		Reason:    "within limits",
		Remaining: b,
		Receipt:   e.createReceipt("allowed", cost.Amount, "ok"),
	}, nil
}

func (e *SimpleEnforcer) createReceipt(action string, cost int64, reason string) *EnforcementReceipt {
	return &EnforcementReceipt{
		ID:        uuid.New().String(),
		Action:    action,
		CostCents: cost,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}
