package orchestrator

import "github.com/P-U-C/b1e55ed/pkg/finance"

// ShouldEnter reports whether conviction clears the entry threshold and the
// kill switch currently permits opening new positions. Both conditions are
// evaluated by the caller at the moment of the call, not against a
// snapshot taken earlier in the cycle — the kill switch's level can change
// between Collection and Decision, and the whole point of checking it here
// is to see that change before an intent goes out, not after.
func ShouldEnter(conviction, entryThreshold float64, canOpenNewPositions bool) bool {
	return canOpenNewPositions && conviction >= entryThreshold
}

// PositionSize scales a base size by conviction and the active regime's
// leverage cap, using integer-minor-units arithmetic throughout.
func PositionSize(base finance.Money, conviction, regimeLeverageCap float64) finance.Money {
	return base.MulFrac(conviction * regimeLeverageCap)
}

// StopTarget derives a stop and target from a volatility band around the
// current price: wider bands for higher volatility, direction-aware so a
// short's stop sits above entry and its target below.
func StopTarget(entryPrice, volatility, rewardRatio float64, direction string) (stop, target float64) {
	band := entryPrice * volatility
	if direction == "short" {
		return entryPrice + band, entryPrice - band*rewardRatio
	}
	return entryPrice - band, entryPrice + band*rewardRatio
}
