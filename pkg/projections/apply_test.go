package projections_test

import (
	"context"
	"testing"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/crypto"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/finance"
	"github.com/P-U-C/b1e55ed/pkg/orchestrator"
	"github.com/P-U-C/b1e55ed/pkg/projections"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *eventstore.EventStore {
	t.Helper()
	signer, err := crypto.NewEd25519Signer("test-key")
	require.NoError(t, err)
	es, err := eventstore.OpenWriter(context.Background(), t.TempDir(), eventstore.NewMemoryStore(), signer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = es.Close() })
	return es
}

func TestRebuild_ProjectsIntentRegimeAndWeights(t *testing.T) {
	ctx := context.Background()
	es := openTestStore(t)

	_, err := es.Append(ctx, eventstore.KindIntentOpen, orchestrator.IntentOpenPayload{
		Asset: "BTC-USD", Direction: "long", Conviction: 0.9,
		Size: finance.NewMoney(5000, "USD"),
	})
	require.NoError(t, err)

	_, err = es.Append(ctx, eventstore.KindRegimeChanged, orchestrator.RegimeChangedPayload{
		From: orchestrator.RegimeChop, To: orchestrator.RegimeBull,
	})
	require.NoError(t, err)

	weights := orchestrator.DefaultWeights()
	weights[orchestrator.DomainTA] = 0.2
	_, err = es.Append(ctx, eventstore.KindWeightsAdjusted, weights)
	require.NoError(t, err)

	views, quarantine, err := projections.Rebuild(ctx, es, nil)
	require.NoError(t, err)
	require.True(t, quarantine.Empty())

	require.Contains(t, views.Positions.Intents, orchestrator.Asset("BTC-USD"))
	require.Equal(t, orchestrator.RegimeBull, views.Regime.Current)
	require.Len(t, views.Regime.History, 1)
	require.InDelta(t, 0.2, views.Weights.Current[orchestrator.DomainTA], 1e-9)
	require.Len(t, views.Weights.History, 1)
}

func TestRebuild_EmptyLogProducesEmptyViews(t *testing.T) {
	ctx := context.Background()
	es := openTestStore(t)

	views, quarantine, err := projections.Rebuild(ctx, es, nil)
	require.NoError(t, err)
	require.True(t, quarantine.Empty())
	require.Empty(t, views.Positions.Intents)
}

func TestApply_UnknownEventTypeIsIgnoredNotQuarantined(t *testing.T) {
	views := projections.New()
	err := projections.Apply(views, eventstore.Event{
		Seq: 1, Type: eventstore.KindCheckpoint, Timestamp: time.Now(),
	})
	require.NoError(t, err)
}
