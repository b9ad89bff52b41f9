// Package projections rebuilds read-optimized views from the event log.
// Every view here is a cache: nothing in this package is authoritative,
// and any view can be thrown away and rebuilt from pkg/eventstore by
// replaying from genesis. Apply is the only place an event changes a view,
// which keeps rebuild and live-tail update the same code path; Restore
// replaces views wholesale from a snapshot.
package projections

import (
	"time"

	"github.com/P-U-C/b1e55ed/pkg/contributor"
	"github.com/P-U-C/b1e55ed/pkg/orchestrator"
)

// PositionsView tracks the most recent open intent per asset. It is not a
// live-position ledger (execution/fills are out of scope); it answers "what
// did the brain cycle most recently decide for this asset."
type PositionsView struct {
	Intents map[orchestrator.Asset]orchestrator.IntentOpenPayload
}

// RegimeView tracks the regime history and current regime.
type RegimeView struct {
	Current orchestrator.Regime
	Since   time.Time
	History []RegimeTransition
}

// RegimeTransition is one regime.changed.v1 event, projected.
type RegimeTransition struct {
	Seq  uint64
	From orchestrator.Regime
	To   orchestrator.Regime
	At   time.Time
}

// ContributorLeaderboardEntry is one contributor's standing. Attributions
// holds the full submission history so Score (see score.go) can apply
// contributor's time-decay at query time rather than caching a reputation
// number that would go stale between events.
type ContributorLeaderboardEntry struct {
	ContributorID string
	Role          contributor.Role
	Attributions  []contributor.Attribution
	LastActive    time.Time
}

// ContributorLeaderboardView ranks contributors by decayed score.
type ContributorLeaderboardView struct {
	Entries map[string]*ContributorLeaderboardEntry
}

// WeightHistoryEntry is one weights.adjusted.v1 event, projected.
type WeightHistoryEntry struct {
	Seq     uint64
	At      time.Time
	Weights orchestrator.WeightVector
}

// WeightHistoryView is the full sequence of weight adjustments plus the
// current vector.
type WeightHistoryView struct {
	Current orchestrator.WeightVector
	History []WeightHistoryEntry
}

// Views bundles every projection this package maintains. A fresh Views is
// the correct starting point for a full replay from genesis.
type Views struct {
	Positions   PositionsView
	Regime      RegimeView
	Leaderboard ContributorLeaderboardView
	Weights     WeightHistoryView
}

// New returns an empty set of views, ready to be built up by repeated calls
// to Apply.
func New() *Views {
	return &Views{
		Positions:   PositionsView{Intents: make(map[orchestrator.Asset]orchestrator.IntentOpenPayload)},
		Regime:      RegimeView{Current: orchestrator.RegimeChop},
		Leaderboard: ContributorLeaderboardView{Entries: make(map[string]*ContributorLeaderboardEntry)},
		Weights:     WeightHistoryView{Current: orchestrator.DefaultWeights()},
	}
}
