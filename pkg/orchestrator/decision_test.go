package orchestrator_test

import (
	"testing"

	"github.com/P-U-C/b1e55ed/pkg/finance"
	"github.com/P-U-C/b1e55ed/pkg/orchestrator"
	"github.com/stretchr/testify/require"
)

func TestShouldEnter_RequiresBothConvictionAndOpenPositions(t *testing.T) {
	require.True(t, orchestrator.ShouldEnter(0.8, 0.7, true))
	require.False(t, orchestrator.ShouldEnter(0.8, 0.7, false))
	require.False(t, orchestrator.ShouldEnter(0.6, 0.7, true))
}

func TestPositionSize_ScalesByConvictionAndLeverageCap(t *testing.T) {
	base := finance.NewMoney(10000, "USD")
	size := orchestrator.PositionSize(base, 0.5, 1.0)
	require.Equal(t, int64(5000), size.AmountMinor)
}

func TestStopTarget_LongVsShortDirection(t *testing.T) {
	stop, target := orchestrator.StopTarget(100, 0.05, 2.0, "long")
	require.InDelta(t, 95, stop, 1e-9)
	require.InDelta(t, 110, target, 1e-9)

	stop, target = orchestrator.StopTarget(100, 0.05, 2.0, "short")
	require.InDelta(t, 105, stop, 1e-9)
	require.InDelta(t, 90, target, 1e-9)
}
