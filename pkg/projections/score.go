package projections

import (
	"time"

	"github.com/P-U-C/b1e55ed/pkg/contributor"
)

// LeaderboardScore computes contributorID's calibrated reputation as of
// now from the leaderboard view's projected attribution history. It does
// not read the anti-gaming correlation penalty pkg/contributor.Engine
// tracks in memory (rate limiter state and recent-submission diversity
// are not events and cannot be replayed from the log) — a penalty of 0
// here is a lower bound on what the live engine would compute, not a
// claim that no penalty applies.
func LeaderboardScore(views *Views, contributorID string, now time.Time) (contributor.Score, bool) {
	entry, ok := views.Leaderboard.Entries[contributorID]
	if !ok {
		return contributor.Score{}, false
	}
	components := contributor.BuildScoreComponents(entry.Attributions, now, contributor.DefaultHalfLifeDays, 0)
	return contributor.Score{
		ContributorID: contributorID,
		Value:         contributor.ComputeScore(components),
		Components:    components,
		AsOf:          now,
	}, true
}
