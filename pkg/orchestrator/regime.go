package orchestrator

// ClassifyRegime maps a feature snapshot to a coarse market-state label.
// CRISIS takes priority over every trend-based label: a volatility spike
// means the trend reading itself is unreliable.
func ClassifyRegime(f Features, t RegimeThresholds) Regime {
	if f.Volatility >= t.CrisisVolatility {
		return RegimeCrisis
	}
	switch {
	case f.Trend <= t.BearTrend:
		return RegimeBear
	case f.Trend >= t.BullTrend:
		return RegimeBull
	case f.Trend > 0:
		return RegimeEarlyBull
	default:
		return RegimeChop
	}
}
