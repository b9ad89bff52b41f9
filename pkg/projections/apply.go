package projections

import (
	"encoding/json"
	"fmt"

	"github.com/P-U-C/b1e55ed/pkg/contributor"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/orchestrator"
)

// contributorRegisterPayload mirrors pkg/contributor's internal
// registration event body. Decoded here rather than imported because the
// field contributor.register.v1 actually carries (contributor_id, plus
// node/name/metadata pkg/contributor keeps to itself) is smaller than the
// full Contributor type this package has no business constructing.
type contributorRegisterPayload struct {
	ContributorID string           `json:"contributor_id"`
	Role          contributor.Role `json:"role"`
}

// Apply folds one event into views in place. It is the only function in
// this package that folds events into a Views — Rebuild and any future
// live-tail consumer both go through it, so there is exactly one definition
// of what each event type means to a projection. (Restore replaces a Views
// wholesale from a snapshot without folding events.)
func Apply(views *Views, e eventstore.Event) error {
	switch e.Type {
	case eventstore.KindIntentOpen:
		var p orchestrator.IntentOpenPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("projections: decode intent.open: %w", err)
		}
		views.Positions.Intents[p.Asset] = p

	case eventstore.KindRegimeChanged:
		var p orchestrator.RegimeChangedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("projections: decode regime.changed: %w", err)
		}
		views.Regime.Current = p.To
		views.Regime.Since = e.Timestamp
		views.Regime.History = append(views.Regime.History, RegimeTransition{
			Seq: e.Seq, From: p.From, To: p.To, At: e.Timestamp,
		})

	case eventstore.KindWeightsAdjusted:
		var w orchestrator.WeightVector
		if err := json.Unmarshal(e.Payload, &w); err != nil {
			return fmt.Errorf("projections: decode weights.adjusted: %w", err)
		}
		views.Weights.Current = w
		views.Weights.History = append(views.Weights.History, WeightHistoryEntry{
			Seq: e.Seq, At: e.Timestamp, Weights: w,
		})

	case eventstore.KindContributorRegister:
		var p contributorRegisterPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("projections: decode contributor.register: %w", err)
		}
		if _, exists := views.Leaderboard.Entries[p.ContributorID]; !exists {
			views.Leaderboard.Entries[p.ContributorID] = &ContributorLeaderboardEntry{
				ContributorID: p.ContributorID,
				Role:          p.Role,
				LastActive:    e.Timestamp,
			}
		}

	case eventstore.KindAttribution:
		var a contributor.Attribution
		if err := json.Unmarshal(e.Payload, &a); err != nil {
			return fmt.Errorf("projections: decode attribution: %w", err)
		}
		entry, exists := views.Leaderboard.Entries[a.ContributorID]
		if !exists {
			// A submission from a contributor this projection has not yet
			// seen registered (the registration event may be in a batch
			// still in flight, or this replay window started after it) —
			// track the entry anyway rather than drop the attribution.
			entry = &ContributorLeaderboardEntry{ContributorID: a.ContributorID}
			views.Leaderboard.Entries[a.ContributorID] = entry
		}
		if i := indexOfAttribution(entry.Attributions, a.AttributionID); i >= 0 {
			entry.Attributions[i] = a // a later attribution.v1 for the same id carries an accepted/outcome update
		} else {
			entry.Attributions = append(entry.Attributions, a)
		}
		entry.LastActive = e.Timestamp
	}
	return nil
}

func indexOfAttribution(attributions []contributor.Attribution, id string) int {
	for i, a := range attributions {
		if a.AttributionID == id {
			return i
		}
	}
	return -1
}
