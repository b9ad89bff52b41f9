// Package budget tracks realized-loss limits for the node's single portfolio
// and enforces them fail-closed: a storage error or an uncertain read denies
// the trade rather than risking an unbounded loss.
//
// Daily/monthly loss limits are a coarser, always-on companion to the
// portfolio-heat and drawdown checks in risk_budget.go. The kill switch does
// not read this package: its trigger values arrive through
// killswitch.Triggers.
package budget

import (
	"context"
	"time"
)

// Cost represents a realized or estimated loss from a position close.
type Cost struct {
	Amount   int64  // In cents, always positive magnitude of loss
	Currency string // e.g., "USD"
	Reason   string // What the loss is attributed to
}

// Budget tracks the node's loss limits and current usage for the day/month.
type Budget struct {
	DailyLimit   int64     `json:"daily_limit"`   // cents
	MonthlyLimit int64     `json:"monthly_limit"` // cents
	DailyUsed    int64     `json:"daily_used"`    // cents
	MonthlyUsed  int64     `json:"monthly_used"`  // cents
	LastUpdated  time.Time `json:"last_updated"`
}

// DailyRemaining returns how much budget is remaining for the day.
func (b *Budget) DailyRemaining() int64 {
	remaining := b.DailyLimit - b.DailyUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MonthlyRemaining returns how much budget is remaining for the month.
func (b *Budget) MonthlyRemaining() int64 {
	remaining := b.MonthlyLimit - b.MonthlyUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Decision represents the result of a loss budget check.
type Decision struct {
	Allowed   bool                `json:"allowed"`
	Reason    string              `json:"reason"`
	Remaining *Budget             `json:"remaining,omitempty"`
	Receipt   *EnforcementReceipt `json:"receipt,omitempty"`
}

// EnforcementReceipt provides evidence of a loss budget decision.
type EnforcementReceipt struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"` // "allowed" or "denied"
	CostCents int64     `json:"cost_cents"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Enforcer is the interface for loss budget enforcement.
type Enforcer interface {
	// Check verifies if a loss can be incurred. Fails closed on errors.
	Check(ctx context.Context, cost Cost) (*Decision, error)

	// GetBudget retrieves current loss budget status.
	GetBudget(ctx context.Context) (*Budget, error)

	// SetLimits updates the daily/monthly loss limits.
	SetLimits(ctx context.Context, daily, monthly int64) error

	// RecordSpend records a realized loss after a position close.
	RecordSpend(ctx context.Context, cost Cost) error
}
