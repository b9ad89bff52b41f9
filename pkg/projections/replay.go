package projections

import (
	"context"
	"fmt"

	"github.com/P-U-C/b1e55ed/pkg/eventstore"
)

// rangeWindow bounds how many events Rebuild reads from the store per
// Range call, so a very long log doesn't require one unbounded read.
const rangeWindow = 500

// Rebuild replays the full event log from genesis through the latest event
// and folds every event into a fresh Views via Apply, upcasting or
// quarantining any event whose schema version this build doesn't
// recognize. It never mutates the store — a rebuild is purely a read.
func Rebuild(ctx context.Context, es *eventstore.EventStore, upcasters *UpcastRegistry) (*Views, *Quarantine, error) {
	views := New()
	quarantine := &Quarantine{}

	head, err := es.Head(ctx)
	if err != nil {
		if err == eventstore.ErrNotFound {
			return views, quarantine, nil
		}
		return nil, nil, fmt.Errorf("projections: read log head: %w", err)
	}
	tipSeq := head.Seq

	for from := eventstore.GenesisSeq; from <= tipSeq; from += rangeWindow {
		to := from + rangeWindow - 1
		if to > tipSeq {
			to = tipSeq
		}
		events, err := es.Range(ctx, from, to)
		if err != nil {
			return nil, nil, fmt.Errorf("projections: range [%d,%d]: %w", from, to, err)
		}
		for _, e := range events {
			if err := applyUpcast(views, quarantine, upcasters, e); err != nil {
				return nil, nil, err
			}
		}
	}
	return views, quarantine, nil
}

// applyUpcast upcasts e's payload to the current schema version (if
// upcasters has a registered path from e's version), then folds it into
// views. An event with no registered upcast path at a version this build
// doesn't natively handle is quarantined rather than applied with a
// possibly-wrong shape or silently dropped.
func applyUpcast(views *Views, quarantine *Quarantine, upcasters *UpcastRegistry, e eventstore.Event) error {
	if upcasters != nil {
		upcast, ok, err := upcasters.Upcast(e.Type, e.Payload)
		if err != nil {
			quarantine.Add(e, fmt.Sprintf("upcast failed: %v", err))
			return nil
		}
		if !ok {
			quarantine.Add(e, "unrecognized schema version, no upcast path registered")
			return nil
		}
		e.Payload = upcast
	}
	if err := Apply(views, e); err != nil {
		quarantine.Add(e, err.Error())
	}
	return nil
}
