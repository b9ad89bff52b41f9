package projections

import (
	"context"
	"fmt"

	"github.com/P-U-C/b1e55ed/pkg/canonicalize"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/replay"
)

// runEventSource serves a pre-built RunEvent slice (already carrying live
// output hashes) to replay.Engine. The "run" replay.Engine knows about is
// always the whole log: this store has no concept of a run boundary
// narrower than genesis..tip.
type runEventSource struct {
	events []replay.RunEvent
}

func (s *runEventSource) GetRunEvents(ctx context.Context, runID string) ([]replay.RunEvent, error) {
	return s.events, nil
}

// foldExecutor re-applies events into a fresh Views, one at a time, and
// reports the canonical hash of the views' state after each step as that
// step's output hash. It is the Executor half of a replay.Engine run: what
// Apply does, replay.Engine just calls it and compares against the hash
// the live pass already recorded for the same event.
type foldExecutor struct {
	views      *Views
	quarantine *Quarantine
	upcasters  *UpcastRegistry
	byHash     map[string]eventstore.Event
}

func (f *foldExecutor) ReplayEvent(ctx context.Context, run replay.RunEvent) (string, error) {
	e, ok := f.byHash[run.EventID]
	if !ok {
		return "", fmt.Errorf("projections: replay event %s not found in source log", run.EventID)
	}
	if err := applyUpcast(f.views, f.quarantine, f.upcasters, e); err != nil {
		return "", err
	}
	return canonicalize.CanonicalHash(f.views)
}

// VerifyReplayEquivalence checks the invariant that a projection rebuilt
// purely from the event log reaches the exact same state, step for step,
// as the view built incrementally while those events were live: for every
// projection P, P(replay(genesis..tip)) == P(live). It folds the log once
// to capture each step's live output hash, then folds it again through a
// replay.Engine session that recomputes the same hashes independently —
// any divergence surfaces at the exact step it happened, via the session's
// DivergencePoint, rather than only as a final pass/fail.
func VerifyReplayEquivalence(ctx context.Context, es *eventstore.EventStore, upcasters *UpcastRegistry) (*replay.IntegrityReceipt, error) {
	head, err := es.Head(ctx)
	if err != nil {
		if err == eventstore.ErrNotFound {
			return &replay.IntegrityReceipt{Success: true, Output: map[string]any{"total_steps": 0}}, nil
		}
		return nil, fmt.Errorf("projections: read log head: %w", err)
	}
	tipSeq := head.Seq

	events := make([]eventstore.Event, 0, tipSeq+1)
	for from := eventstore.GenesisSeq; from <= tipSeq; from += rangeWindow {
		to := from + rangeWindow - 1
		if to > tipSeq {
			to = tipSeq
		}
		batch, err := es.Range(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("projections: range [%d,%d]: %w", from, to, err)
		}
		events = append(events, batch...)
	}

	byHash := make(map[string]eventstore.Event, len(events))
	runEvents := make([]replay.RunEvent, len(events))
	liveViews := New()
	liveQuarantine := &Quarantine{}
	for i, e := range events {
		byHash[e.Hash] = e
		if err := applyUpcast(liveViews, liveQuarantine, upcasters, e); err != nil {
			return nil, err
		}
		outputHash, err := canonicalize.CanonicalHash(liveViews)
		if err != nil {
			return nil, fmt.Errorf("projections: hash live view at seq %d: %w", e.Seq, err)
		}
		runEvents[i] = replay.RunEvent{
			SequenceNumber: e.Seq,
			EventID:        e.Hash,
			EventType:      string(e.Type),
			PayloadHash:    e.Hash,
			OutputHash:     outputHash,
			Timestamp:      e.Timestamp,
		}
	}

	executor := &foldExecutor{views: New(), quarantine: &Quarantine{}, upcasters: upcasters, byHash: byHash}
	engine := replay.NewEngine(&runEventSource{events: runEvents}, executor)

	session, err := engine.StartReplay(ctx, "genesis..tip")
	if err != nil {
		return nil, fmt.Errorf("projections: replay equivalence check: %w", err)
	}
	return replay.VerifyReplayIntegrity(session), nil
}
