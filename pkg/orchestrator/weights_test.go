package orchestrator_test

import (
	"testing"

	"github.com/P-U-C/b1e55ed/pkg/orchestrator"
	"github.com/stretchr/testify/require"
)

func TestClampWeights_ColdStartSuppressesAdjustment(t *testing.T) {
	current := orchestrator.DefaultWeights()
	proposed := orchestrator.WeightVector{orchestrator.DomainTA: 0.40}
	for _, d := range orchestrator.AllDomains() {
		if d != orchestrator.DomainTA {
			proposed[d] = current[d]
		}
	}

	out := orchestrator.ClampWeights(current, proposed, 10)
	require.Equal(t, current[orchestrator.DomainTA], out[orchestrator.DomainTA])
}

func TestClampWeights_WarmPeriodHalvesDelta(t *testing.T) {
	current := orchestrator.WeightVector{orchestrator.DomainTA: 0.20}
	proposed := orchestrator.WeightVector{orchestrator.DomainTA: 0.30}

	out := orchestrator.ClampWeights(current, proposed, 60)
	require.InDelta(t, 0.21, out[orchestrator.DomainTA], 1e-9)
}

func TestClampWeights_FullRateAfterWarmPeriod(t *testing.T) {
	current := orchestrator.WeightVector{orchestrator.DomainTA: 0.20}
	proposed := orchestrator.WeightVector{orchestrator.DomainTA: 0.30}

	out := orchestrator.ClampWeights(current, proposed, 120)
	require.InDelta(t, 0.22, out[orchestrator.DomainTA], 1e-9)
}

func TestClampWeights_BoundsEnforced(t *testing.T) {
	current := orchestrator.WeightVector{orchestrator.DomainTA: 0.39}
	proposed := orchestrator.WeightVector{orchestrator.DomainTA: 0.90}

	out := orchestrator.ClampWeights(current, proposed, 365)
	require.LessOrEqual(t, out[orchestrator.DomainTA], orchestrator.WeightMax)
}

func TestClampWeights_DomainAbsentFromProposedUnchangedButClamped(t *testing.T) {
	current := orchestrator.WeightVector{orchestrator.DomainOnchain: 0.02}
	out := orchestrator.ClampWeights(current, orchestrator.WeightVector{}, 365)
	require.Equal(t, orchestrator.WeightMin, out[orchestrator.DomainOnchain])
}
