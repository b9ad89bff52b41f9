package contributor

import (
	"math"
	"time"
)

// DefaultHalfLifeDays is the contribution time-decay half-life per
// SPEC_FULL.md §4.6 / engine/core/scoring.py.
const DefaultHalfLifeDays = 30.0

// decayWeight returns the exponential decay factor for a contribution
// ageDays old, halving every halfLifeDays. A contribution from today
// weighs 1.0; one from halfLifeDays ago weighs 0.5.
func decayWeight(ageDays, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}

// clamp01 clamps v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// outcomeIndicator maps a realized outcome in [0,1] to the binary target
// the Brier score is computed against: whether the signal was, on net,
// more right than wrong.
func outcomeIndicator(outcome float64) float64 {
	if outcome >= 0.5 {
		return 1
	}
	return 0
}

// BuildScoreComponents reduces a contributor's attribution history into
// decay-weighted score components, as of now. correlationPenalty is
// computed separately (it depends on the contributor's recent submission
// diversity, which the attribution history does not carry) and passed
// through rather than recomputed here. BrierScore stays 1, earning no
// calibration credit, until at least one outcome has been evaluated.
func BuildScoreComponents(attributions []Attribution, now time.Time, halfLifeDays, correlationPenalty float64) ScoreComponents {
	c := ScoreComponents{
		Submissions:        len(attributions),
		CorrelationPenalty: clamp01(correlationPenalty),
		BrierScore:         1,
	}
	if len(attributions) == 0 {
		return c
	}

	var totalWeight, acceptedWeight, outcomeWeight, outcomeSum, brierSum float64
	for _, a := range attributions {
		ageDays := now.Sub(a.SubmittedAt).Hours() / 24
		w := decayWeight(ageDays, halfLifeDays)
		totalWeight += w

		if a.Accepted {
			c.Accepted++
			acceptedWeight += w
		}

		if a.EvaluatedOutcome != nil {
			outcome := clamp01(*a.EvaluatedOutcome)
			outcomeWeight += w
			outcomeSum += w * outcome
			indicator := outcomeIndicator(outcome)
			conviction := clamp01(a.Conviction)
			brierSum += w * (conviction - indicator) * (conviction - indicator)
		}
	}

	c.DecayedWeight = totalWeight
	if totalWeight > 0 {
		c.AcceptanceFraction = acceptedWeight / totalWeight
	}
	if outcomeWeight > 0 {
		c.RealizedOutcomeFraction = outcomeSum / outcomeWeight
		c.BrierScore = brierSum / outcomeWeight
	}
	return c
}

// ComputeScore combines score components into one clamped reputation
// value: acceptance and realized-outcome fractions reward usefulness,
// (1 - Brier) rewards calibration, and the correlation penalty discounts
// contributors whose recent submissions span too few distinct event types.
// Weights sum to 1 before the penalty is applied, so an
// uncorrelated, perfectly calibrated, always-accepted, always-correct
// contributor scores exactly 1.
func ComputeScore(c ScoreComponents) float64 {
	raw := 0.4*c.AcceptanceFraction + 0.3*c.RealizedOutcomeFraction + 0.3*(1-clamp01(c.BrierScore))
	return clamp01(raw * (1 - clamp01(c.CorrelationPenalty)))
}
