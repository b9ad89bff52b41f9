package orchestrator_test

import (
	"testing"

	"github.com/P-U-C/b1e55ed/pkg/orchestrator"
	"github.com/stretchr/testify/require"
)

func TestClassifyRegime_CrisisTakesPriorityOverTrend(t *testing.T) {
	thresholds := orchestrator.DefaultRegimeThresholds()
	f := orchestrator.Features{Trend: 0.9, Volatility: 0.85}
	require.Equal(t, orchestrator.RegimeCrisis, orchestrator.ClassifyRegime(f, thresholds))
}

func TestClassifyRegime_Bull(t *testing.T) {
	thresholds := orchestrator.DefaultRegimeThresholds()
	f := orchestrator.Features{Trend: 0.5, Volatility: 0.1}
	require.Equal(t, orchestrator.RegimeBull, orchestrator.ClassifyRegime(f, thresholds))
}

func TestClassifyRegime_Bear(t *testing.T) {
	thresholds := orchestrator.DefaultRegimeThresholds()
	f := orchestrator.Features{Trend: -0.5, Volatility: 0.1}
	require.Equal(t, orchestrator.RegimeBear, orchestrator.ClassifyRegime(f, thresholds))
}

func TestClassifyRegime_EarlyBull(t *testing.T) {
	thresholds := orchestrator.DefaultRegimeThresholds()
	f := orchestrator.Features{Trend: 0.1, Volatility: 0.1}
	require.Equal(t, orchestrator.RegimeEarlyBull, orchestrator.ClassifyRegime(f, thresholds))
}

func TestClassifyRegime_Chop(t *testing.T) {
	thresholds := orchestrator.DefaultRegimeThresholds()
	f := orchestrator.Features{Trend: 0, Volatility: 0.1}
	require.Equal(t, orchestrator.RegimeChop, orchestrator.ClassifyRegime(f, thresholds))
}
