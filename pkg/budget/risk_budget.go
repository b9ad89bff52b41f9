package budget

import (
	"fmt"
	"sync"
	"time"
)

// RiskLevel categorizes the exposure multiplier for a position or signal.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskWeights maps risk levels to exposure multipliers.
var RiskWeights = map[RiskLevel]float64{
	RiskLow:      1.0,
	RiskMedium:   2.0,
	RiskHigh:     5.0,
	RiskCritical: 10.0,
}

// RiskBudget tracks the node's portfolio heat, open-position count, and
// autonomy level. PortfolioHeatUsed and DrawdownScore track the quantities
// behind the kill switch's heat and drawdown triggers, but nothing outside
// this package reads them; AutonomyLevel shrinks as uncertainty rises,
// independent of any manual kill switch action.
type RiskBudget struct {
	PortfolioHeatCap  float64 `json:"portfolio_heat_cap"`
	PortfolioHeatUsed float64 `json:"portfolio_heat_used"`
	BlastRadiusCap    int     `json:"blast_radius_cap"` // Max concurrent open positions
	BlastRadiusUsed   int     `json:"blast_radius_used"`
	DrawdownCap       float64 `json:"drawdown_cap"` // Lifetime drawdown ceiling, e.g. 0.30
	DrawdownScore     float64 `json:"drawdown_score"`
	AutonomyLevel     int     `json:"autonomy_level"`    // 0-100, shrinks under uncertainty
	UncertaintyScore  float64 `json:"uncertainty_score"` // 0.0-1.0
}

// RiskDecision is the result of a risk budget check.
type RiskDecision struct {
	Allowed          bool    `json:"allowed"`
	Reason           string  `json:"reason"`
	RiskCost         float64 `json:"risk_cost"`
	AutonomyShrunk   bool    `json:"autonomy_shrunk"`
	NewAutonomyLevel int     `json:"new_autonomy_level,omitempty"`
}

// RiskEnforcer manages the node's single portfolio risk budget.
type RiskEnforcer struct {
	mu     sync.Mutex
	budget *RiskBudget
	clock  func() time.Time
}

// NewRiskEnforcer creates a new risk budget enforcer.
func NewRiskEnforcer() *RiskEnforcer {
	return &RiskEnforcer{
		clock: time.Now,
	}
}

// WithClock overrides clock for testing.
func (e *RiskEnforcer) WithClock(clock func() time.Time) *RiskEnforcer {
	e.clock = clock
	return e
}

// SetBudget sets the node's risk budget.
func (e *RiskEnforcer) SetBudget(budget *RiskBudget) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.budget = budget
}

// GetBudget retrieves the current risk budget.
func (e *RiskEnforcer) GetBudget() (*RiskBudget, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.budget == nil {
		return nil, fmt.Errorf("no risk budget configured")
	}
	return e.budget, nil
}

// CheckRisk evaluates whether taking on a position's heat is within budget.
func (e *RiskEnforcer) CheckRisk(riskLevel RiskLevel, baseHeat float64, blastRadius int) *RiskDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.budget
	if b == nil {
		return &RiskDecision{Allowed: false, Reason: "no risk budget configured"}
	}

	weight := RiskWeights[riskLevel]
	riskCost := baseHeat * weight

	if b.PortfolioHeatUsed+riskCost > b.PortfolioHeatCap {
		return &RiskDecision{
			Allowed:  false,
			Reason:   fmt.Sprintf("portfolio heat %.3f would exceed cap %.3f", b.PortfolioHeatUsed+riskCost, b.PortfolioHeatCap),
			RiskCost: riskCost,
		}
	}

	if b.BlastRadiusUsed+blastRadius > b.BlastRadiusCap {
		return &RiskDecision{
			Allowed:  false,
			Reason:   fmt.Sprintf("open position count %d would exceed cap %d", b.BlastRadiusUsed+blastRadius, b.BlastRadiusCap),
			RiskCost: riskCost,
		}
	}

	b.PortfolioHeatUsed += riskCost
	b.BlastRadiusUsed += blastRadius

	return &RiskDecision{
		Allowed:  true,
		Reason:   "within risk budget",
		RiskCost: riskCost,
	}
}

// ReleaseRisk gives back heat and open-position count when a position closes.
func (e *RiskEnforcer) ReleaseRisk(riskLevel RiskLevel, baseHeat float64, blastRadius int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.budget
	if b == nil {
		return
	}
	weight := RiskWeights[riskLevel]
	b.PortfolioHeatUsed -= baseHeat * weight
	if b.PortfolioHeatUsed < 0 {
		b.PortfolioHeatUsed = 0
	}
	b.BlastRadiusUsed -= blastRadius
	if b.BlastRadiusUsed < 0 {
		b.BlastRadiusUsed = 0
	}
}

// RecordDrawdown updates the lifetime drawdown score and reports whether it
// has crossed the cap.
func (e *RiskEnforcer) RecordDrawdown(score float64) (exceeded bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.budget
	if b == nil {
		return false
	}
	b.DrawdownScore = score
	return b.DrawdownScore >= b.DrawdownCap
}

// ShrinkAutonomy reduces autonomy level based on uncertainty. When
// uncertainty rises above a threshold the orchestrator restricts what the
// decision phase can act on without operator approval.
func (e *RiskEnforcer) ShrinkAutonomy(uncertaintyDelta float64) *RiskDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.budget
	if b == nil {
		return &RiskDecision{Allowed: false, Reason: "no risk budget configured"}
	}

	b.UncertaintyScore += uncertaintyDelta
	if b.UncertaintyScore > 1.0 {
		b.UncertaintyScore = 1.0
	}
	if b.UncertaintyScore < 0.0 {
		b.UncertaintyScore = 0.0
	}

	oldLevel := b.AutonomyLevel
	b.AutonomyLevel = int(100.0 * (1.0 - b.UncertaintyScore))

	shrunk := b.AutonomyLevel < oldLevel
	return &RiskDecision{
		Allowed:          true,
		Reason:           fmt.Sprintf("autonomy adjusted: %d -> %d (uncertainty: %.2f)", oldLevel, b.AutonomyLevel, b.UncertaintyScore),
		AutonomyShrunk:   shrunk,
		NewAutonomyLevel: b.AutonomyLevel,
	}
}

// IsAutonomousAllowed checks if the current autonomy level permits
// autonomous action at the given risk level.
func (e *RiskEnforcer) IsAutonomousAllowed(riskLevel RiskLevel) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.budget
	if b == nil {
		return false // Fail-closed
	}

	thresholds := map[RiskLevel]int{
		RiskLow:      10,
		RiskMedium:   40,
		RiskHigh:     70,
		RiskCritical: 101, // Never autonomous (AutonomyLevel tops out at 100)
	}

	threshold := thresholds[riskLevel]
	return b.AutonomyLevel >= threshold
}
