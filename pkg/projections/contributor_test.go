package projections_test

import (
	"context"
	"testing"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/contributor"
	"github.com/P-U-C/b1e55ed/pkg/projections"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRebuild_ProjectsContributorSubmissionsAndOutcomes(t *testing.T) {
	ctx := context.Background()
	es := openTestStore(t)

	cfg := contributor.DefaultAntiGamingConfig()
	cfg.RateLimit = rate.Inf
	engine := contributor.NewEngine(contributor.NewMemoryStore(), es, cfg)

	c, err := engine.Register(ctx, "node-1", "Alice", contributor.RoleAgent, nil)
	require.NoError(t, err)

	_, attributionID, err := engine.SubmitSignal(ctx, c.ID, "signal.ta.rsi.v1", 0.8, map[string]any{"rsi": 24.1})
	require.NoError(t, err)

	outcome := 0.9
	require.NoError(t, engine.RecordOutcome(ctx, attributionID, true, &outcome))

	views, quarantine, err := projections.Rebuild(ctx, es, nil)
	require.NoError(t, err)
	require.True(t, quarantine.Empty())

	entry, ok := views.Leaderboard.Entries[c.ID]
	require.True(t, ok)
	require.Equal(t, contributor.RoleAgent, entry.Role)
	require.Len(t, entry.Attributions, 1)
	require.True(t, entry.Attributions[0].Accepted)
	require.NotNil(t, entry.Attributions[0].EvaluatedOutcome)

	score, ok := projections.LeaderboardScore(views, c.ID, time.Now())
	require.True(t, ok)
	require.Equal(t, 1, score.Components.Submissions)
	require.Greater(t, score.Value, 0.5)
}
