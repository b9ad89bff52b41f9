package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/finance"
	"github.com/P-U-C/b1e55ed/pkg/governance"
	"github.com/P-U-C/b1e55ed/pkg/killswitch"
)

// PolicyEntryThreshold and PolicyCTSTrigger are the governance.PolicyEngine
// policy IDs Open loads. The Decision phase evaluates entry_threshold
// through the engine rather than comparing floats directly in Go, so an
// operator can tighten it by loading a new policy without a code change.
// cts_trigger is loaded but not evaluated: the Conviction phase compares
// PCS against cfg.CTSTrigger directly in ComputeConviction.
const (
	PolicyEntryThreshold = "entry_threshold"
	PolicyCTSTrigger     = "cts_trigger"
)

// DefaultFailureBound is how many consecutive missed fetches a producer
// domain tolerates before Quality treats it as unhealthy regardless of
// whether its latest signal is still technically inside the staleness
// window.
const DefaultFailureBound = 3

// Config bounds one orchestrator's behavior: deadlines, thresholds, and
// the base position size before conviction/regime scaling.
type Config struct {
	CycleDeadline    time.Duration
	PhaseDeadline    time.Duration
	EntryThreshold   float64
	CTSTrigger       float64
	StalenessWindow  time.Duration
	RewardRatio      float64
	BaseSize         finance.Money
	RegimeThresholds RegimeThresholds
	FailureBound     int
}

// Orchestrator runs the brain cycle. One exists per node, sharing the
// event store and kill switch every other safety-relevant component uses.
type Orchestrator struct {
	mu      sync.Mutex
	es      *eventstore.EventStore
	ks      *killswitch.KillSwitch
	policy  *governance.PolicyEngine
	clients map[Domain]ProducerClient
	cfg     Config
	clock   func() time.Time

	weights             WeightVector
	logStartedAt        time.Time
	currentRegime       Regime
	consecutiveFailures map[Domain]int
}

// Open constructs an Orchestrator, restoring the current regime from the
// latest regime.changed.v1 event (defaulting to CHOP, the least committal
// label, if none exists) and registering the entry_threshold and
// cts_trigger CEL policies.
func Open(ctx context.Context, es *eventstore.EventStore, ks *killswitch.KillSwitch, clients map[Domain]ProducerClient, cfg Config) (*Orchestrator, error) {
	policy, err := governance.NewPolicyEngine()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: policy engine: %w", err)
	}
	if err := policy.LoadPolicy(PolicyEntryThreshold, fmt.Sprintf("conviction >= %v", cfg.EntryThreshold)); err != nil {
		return nil, fmt.Errorf("orchestrator: load entry_threshold policy: %w", err)
	}
	if err := policy.LoadPolicy(PolicyCTSTrigger, fmt.Sprintf("pcs >= %v", cfg.CTSTrigger)); err != nil {
		return nil, fmt.Errorf("orchestrator: load cts_trigger policy: %w", err)
	}

	o := &Orchestrator{
		es:                  es,
		ks:                  ks,
		policy:              policy,
		clients:             clients,
		cfg:                 cfg,
		clock:               time.Now,
		weights:             DefaultWeights(),
		currentRegime:       RegimeChop,
		consecutiveFailures: make(map[Domain]int),
	}

	genesis, err := es.Get(ctx, eventstore.GenesisSeq)
	if err == nil {
		o.logStartedAt = genesis.Timestamp
	}

	if e, err := es.LatestOfType(ctx, eventstore.KindRegimeChanged); err == nil {
		var p RegimeChangedPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			o.currentRegime = p.To
		}
	}

	if e, err := es.LatestOfType(ctx, eventstore.KindWeightsAdjusted); err == nil {
		var w WeightVector
		if json.Unmarshal(e.Payload, &w) == nil {
			o.weights = w
		}
	}

	return o, nil
}

// logAgeDays reports how many days of history the event log carries,
// measured from the genesis event, since ClampWeights' cold-start and warm
// period rules are relative to log age rather than wall-clock calendar
// time.
func (o *Orchestrator) logAgeDays() float64 {
	if o.logStartedAt.IsZero() {
		return 0
	}
	return o.clock().Sub(o.logStartedAt).Hours() / 24
}

// AdjustWeights proposes a new per-domain weight vector, clamps it against
// the current one per ClampWeights' cold-start/warm-period/delta-cap rules,
// and — if the clamped result differs from the current vector — persists it
// as a weights.adjusted.v1 event. This is an operator- or
// scoring-pipeline-triggered maintenance operation, not part of every brain
// cycle.
func (o *Orchestrator) AdjustWeights(ctx context.Context, proposed WeightVector) (WeightVector, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	clamped := ClampWeights(o.weights, proposed, o.logAgeDays())
	if weightsEqual(clamped, o.weights) {
		return clamped, nil
	}
	if _, err := o.es.Append(ctx, eventstore.KindWeightsAdjusted, clamped); err != nil {
		return nil, fmt.Errorf("orchestrator: append weights.adjusted: %w", err)
	}
	o.weights = clamped
	return clamped, nil
}

func weightsEqual(a, b WeightVector) bool {
	if len(a) != len(b) {
		return false
	}
	for d, v := range a {
		if b[d] != v {
			return false
		}
	}
	return true
}

// WithClock overrides the clock used for signal freshness comparisons and
// cold-start age calculations, for testing.
func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

// CycleInput is everything a RunCycle call needs that the orchestrator
// cannot derive from the event log itself: the assets to consider this
// pass, the current market features driving regime classification, and a
// reference price per asset for stop/target derivation. Producers and
// price feeds are external collaborators; this is the seam they cross at.
type CycleInput struct {
	Assets   []Asset
	Features Features
	Prices   map[Asset]float64
}

// RunCycle executes one pass of the six-phase pipeline. It never blocks
// without a deadline: the whole cycle is bounded by cfg.CycleDeadline, and
// the Collection phase's producer calls are additionally bounded by
// cfg.PhaseDeadline. A deadline hit mid-cycle finishes the asset in flight,
// emits cycle.partial.v1 naming the phase and the assets not yet reached,
// and returns without error — a partial cycle is the expected outcome of a
// slow producer, not a failure worth propagating to the caller.
func (o *Orchestrator) RunCycle(ctx context.Context, in CycleInput) (*CycleCompletedPayload, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, o.cfg.CycleDeadline)
	defer cancel()

	startSeq, err := o.startSeq(cycleCtx)
	if err != nil {
		return nil, err
	}
	if _, err := o.es.Append(cycleCtx, eventstore.KindCycleStarted, CycleStartedPayload{StartSeq: startSeq, Assets: in.Assets}); err != nil {
		return nil, fmt.Errorf("orchestrator: append cycle.started: %w", err)
	}

	collectionCtx, collectionCancel := context.WithTimeout(cycleCtx, o.cfg.PhaseDeadline)
	signals, err := CollectSignals(collectionCtx, o.clients, in.Assets)
	collectionCancel()
	if err != nil {
		return o.partial(cycleCtx, PhaseCollection, nil, in.Assets, err)
	}

	now := o.clock()
	filtered := make(map[Asset]map[Domain][]SignalScore, len(in.Assets))
	for _, asset := range in.Assets {
		perDomain := make(map[Domain][]SignalScore)
		for _, domain := range AllDomains() {
			scores := signals[asset][domain]
			health, unhealthy := CheckStaleness(asset, domain, scores, now, o.cfg.StalenessWindow, o.consecutiveFailures[domain], o.failureBound())
			if unhealthy {
				o.consecutiveFailures[domain]++
				kind := eventstore.Kind(eventstore.ProducerHealthPrefix + string(domain) + ".v1")
				if _, err := o.es.Append(cycleCtx, kind, health); err != nil {
					return o.partial(cycleCtx, PhaseQuality, nil, in.Assets, err)
				}
				continue
			}
			o.consecutiveFailures[domain] = 0
			perDomain[domain] = scores
		}
		filtered[asset] = perDomain
	}

	regime := ClassifyRegime(in.Features, o.cfg.RegimeThresholds)
	if regime != o.currentRegime {
		changed := RegimeChangedPayload{From: o.currentRegime, To: regime, Features: in.Features}
		if _, err := o.es.Append(cycleCtx, eventstore.KindRegimeChanged, changed); err != nil {
			return o.partial(cycleCtx, PhaseRegime, nil, in.Assets, err)
		}
		o.currentRegime = regime
	}

	opposing := DeriveOpposingFactors(in.Features)
	intentsEmitted := 0
	var killSwitchBlocked []Asset
	completed := make([]Asset, 0, len(in.Assets))

	for _, asset := range in.Assets {
		if err := cycleCtx.Err(); err != nil {
			return o.partial(cycleCtx, PhaseDecision, completed, remaining(in.Assets, completed), err)
		}

		pcs := ComputePCS(o.weights, filtered[asset])
		cts, conviction := ComputeConviction(pcs, opposing, o.cfg.CTSTrigger)

		// Read the kill switch fresh, immediately before using it, not from
		// a value cached earlier in the cycle — this is the TOCTOU-safe
		// point the decision is allowed to trust.
		canOpen := o.ks.CanOpenNewPositions()
		verdict, err := o.policy.Evaluate(cycleCtx, PolicyEntryThreshold, governance.Metrics{
			Regime:          string(regime),
			PCS:             pcs,
			CTS:             cts,
			Conviction:      conviction,
			KillSwitchLevel: o.ks.Level().String(),
		})
		if err != nil {
			return o.partial(cycleCtx, PhaseDecision, completed, remaining(in.Assets, completed), err)
		}
		if verdict.Allowed && canOpen {
			if err := o.emitIntent(cycleCtx, asset, pcs, cts, conviction, regime, in.Prices[asset]); err != nil {
				return o.partial(cycleCtx, PhaseDecision, completed, remaining(in.Assets, completed), err)
			}
			intentsEmitted++
		} else if verdict.Allowed && !canOpen {
			killSwitchBlocked = append(killSwitchBlocked, asset)
		}
		completed = append(completed, asset)
	}

	endSeq, err := o.es.Len(cycleCtx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read end seq: %w", err)
	}
	result := CycleCompletedPayload{StartSeq: startSeq, EndSeq: endSeq, Assets: in.Assets, IntentsEmitted: intentsEmitted, KillSwitchBlocked: killSwitchBlocked}
	if _, err := o.es.Append(cycleCtx, eventstore.KindCycleCompleted, result); err != nil {
		return nil, fmt.Errorf("orchestrator: append cycle.completed: %w", err)
	}
	return &result, nil
}

func (o *Orchestrator) emitIntent(ctx context.Context, asset Asset, pcs, cts, conviction float64, regime Regime, price float64) error {
	direction := "long"
	if price < 0 {
		direction = "short"
		price = -price
	}
	size := PositionSize(o.cfg.BaseSize, conviction, RegimeLeverageCap[regime])
	stop, target := StopTarget(price, volatilityOf(regime), o.cfg.RewardRatio, direction)

	payload := IntentOpenPayload{
		Asset:      asset,
		Direction:  direction,
		Conviction: conviction,
		PCS:        pcs,
		CTS:        cts,
		Regime:     regime,
		Size:       size,
		Stop:       stop,
		Target:     target,
	}
	_, err := o.es.Append(ctx, eventstore.KindIntentOpen, payload)
	return err
}

// volatilityOf approximates a stop/target band width from the regime alone
// when no asset-specific volatility figure is supplied — CHOP and CRISIS
// warrant wider bands than a trending regime.
func volatilityOf(r Regime) float64 {
	switch r {
	case RegimeCrisis:
		return 0.08
	case RegimeChop:
		return 0.05
	default:
		return 0.03
	}
}

func (o *Orchestrator) failureBound() int {
	if o.cfg.FailureBound > 0 {
		return o.cfg.FailureBound
	}
	return DefaultFailureBound
}

func (o *Orchestrator) startSeq(ctx context.Context) (uint64, error) {
	head, err := o.es.Head(ctx)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: read head: %w", err)
	}
	return head.Seq, nil
}

func (o *Orchestrator) partial(ctx context.Context, phase CyclePhase, completed, remaining []Asset, cause error) (*CycleCompletedPayload, error) {
	reason := "deadline exceeded"
	if cause != nil {
		reason = cause.Error()
	}
	_, err := o.es.Append(ctx, eventstore.KindCyclePartial, CyclePartialPayload{
		Phase:           phase,
		AssetsCompleted: completed,
		AssetsRemaining: remaining,
		Reason:          reason,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: append cycle.partial: %w", err)
	}
	return nil, nil
}

func remaining(all, completed []Asset) []Asset {
	done := make(map[Asset]bool, len(completed))
	for _, a := range completed {
		done[a] = true
	}
	var rest []Asset
	for _, a := range all {
		if !done[a] {
			rest = append(rest, a)
		}
	}
	return rest
}
