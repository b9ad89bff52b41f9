package contributor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/P-U-C/b1e55ed/pkg/eventstore"
)

// registerPayload is the contributor.register.v1 event body.
type registerPayload struct {
	ContributorID string            `json:"contributor_id"`
	NodeID        string            `json:"node_id"`
	Name          string            `json:"name"`
	Role          Role              `json:"role"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Engine registers contributors, records attributed signal submissions,
// and computes calibrated scores. One exists per node.
type Engine struct {
	mu         sync.Mutex
	store      Store
	es         *eventstore.EventStore
	antiGaming *antiGaming
	halfLife   float64
	clock      func() time.Time
}

// NewEngine returns an Engine backed by store and es. cfg tunes the
// anti-gaming checks every submission runs through.
func NewEngine(store Store, es *eventstore.EventStore, cfg AntiGamingConfig) *Engine {
	return &Engine{
		store:      store,
		es:         es,
		antiGaming: newAntiGaming(cfg),
		halfLife:   DefaultHalfLifeDays,
		clock:      time.Now,
	}
}

// WithClock overrides the engine's clock, for deterministic tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Register creates a new contributor and appends contributor.register.v1.
// A duplicate node id is rejected at ingestion with no state change,
// matching the store-level uniqueness the event type itself implies.
func (e *Engine) Register(ctx context.Context, nodeID, name string, role Role, metadata map[string]string) (Contributor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists, err := e.store.GetContributorByNodeID(ctx, nodeID); err != nil {
		return Contributor{}, err
	} else if exists {
		return Contributor{}, ErrDuplicateNodeID
	}

	c := Contributor{
		ID:        uuid.New().String(),
		NodeID:    nodeID,
		Name:      name,
		Role:      role,
		Metadata:  metadata,
		CreatedAt: e.clock(),
	}

	ev, err := e.es.Append(ctx, eventstore.KindContributorRegister, registerPayload{
		ContributorID: c.ID,
		NodeID:        c.NodeID,
		Name:          c.Name,
		Role:          c.Role,
		Metadata:      c.Metadata,
	})
	if err != nil {
		return Contributor{}, fmt.Errorf("contributor: append register event: %w", err)
	}
	c.CreatedSeq = ev.Seq

	if err := e.store.SaveContributor(ctx, c); err != nil {
		return Contributor{}, fmt.Errorf("contributor: save contributor: %w", err)
	}
	return c, nil
}

// SubmitSignal records a signal submission on behalf of contributorID,
// appending the signal event followed by a linked attribution.v1 record
// that names the signal event's sequence number. eventType must be under
// the signal.* namespace. The submission is
// rejected — with no state change — if the contributor is unknown, the
// contributor is currently rate limited, or the canonicalized payload
// duplicates another contributor's recent submission.
func (e *Engine) SubmitSignal(ctx context.Context, contributorID, eventType string, conviction float64, payload interface{}) (eventID, attributionID string, err error) {
	if !strings.HasPrefix(eventType, eventstore.SignalPrefix) {
		return "", "", ErrInvalidEventType
	}

	c, err := e.store.GetContributor(ctx, contributorID)
	if err != nil {
		return "", "", err
	}

	now := e.clock()
	if !e.antiGaming.allow(c.ID, now) {
		return "", "", ErrRateLimited
	}
	duplicate, err := e.antiGaming.checkDuplicate(c.ID, payload, now)
	if err != nil {
		return "", "", err
	}
	if duplicate {
		return "", "", ErrDuplicatePayload
	}

	// Serialize the two appends at the engine level so the attribution
	// event can reference the signal event's assigned sequence number —
	// that number only exists after the first append returns. These are
	// two separate es.Append calls, not a single atomic transaction (unlike
	// pkg/karma.Settle, which writes its settlement+receipt pair with one
	// AppendBatch), but nothing else in this engine appends between them.
	e.mu.Lock()
	defer e.mu.Unlock()

	signalEvent, err := e.es.Append(ctx, eventstore.Kind(eventType), payload)
	if err != nil {
		return "", "", fmt.Errorf("contributor: append signal event: %w", err)
	}

	attribution := Attribution{
		AttributionID: uuid.New().String(),
		ContributorID: c.ID,
		EventID:       strconv.FormatUint(signalEvent.Seq, 10),
		EventType:     eventType,
		Conviction:    clamp01(conviction),
		SubmittedAt:   now,
	}
	if _, err := e.es.Append(ctx, eventstore.KindAttribution, &attribution); err != nil {
		return "", "", fmt.Errorf("contributor: append attribution event: %w", err)
	}

	if err := e.store.SaveAttribution(ctx, attribution); err != nil {
		return "", "", fmt.Errorf("contributor: save attribution: %w", err)
	}
	e.antiGaming.recordType(c.ID, eventType)

	return attribution.EventID, attribution.AttributionID, nil
}

// RecordOutcome fills in whether a past submission was accepted downstream
// and, once known, how it realized. Either may be set independently —
// acceptance is typically known before the realized outcome is. The
// update is itself appended as another attribution.v1 event carrying the
// same AttributionID, so a projection replaying from genesis sees the
// same evaluated state this call produces rather than having to trust an
// out-of-band store mutation the log never recorded.
func (e *Engine) RecordOutcome(ctx context.Context, attributionID string, accepted bool, evaluatedOutcome *float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.store.GetAttribution(ctx, attributionID)
	if err != nil {
		return err
	}
	a.Accepted = accepted
	if evaluatedOutcome != nil {
		v := clamp01(*evaluatedOutcome)
		a.EvaluatedOutcome = &v
		a.EvaluatedAt = e.clock()
	}

	if _, err := e.es.Append(ctx, eventstore.KindAttribution, &a); err != nil {
		return fmt.Errorf("contributor: append attribution update event: %w", err)
	}
	return e.store.SaveAttribution(ctx, a)
}

// Score computes contributorID's current calibrated reputation from its
// full attribution history plus the anti-gaming correlation penalty
// accrued from its recent submission diversity.
func (e *Engine) Score(ctx context.Context, contributorID string) (Score, error) {
	if _, err := e.store.GetContributor(ctx, contributorID); err != nil {
		return Score{}, err
	}
	attributions, err := e.store.ListAttributions(ctx, contributorID)
	if err != nil {
		return Score{}, err
	}

	now := e.clock()
	penalty := e.antiGaming.correlationPenalty(contributorID)
	components := BuildScoreComponents(attributions, now, e.halfLife, penalty)

	return Score{
		ContributorID: contributorID,
		Value:         ComputeScore(components),
		Components:    components,
		AsOf:          now,
	}, nil
}
