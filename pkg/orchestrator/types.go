// Package orchestrator implements the brain cycle: a single scheduled or
// operator-triggered pass that reads recent signal events, synthesizes a
// conviction per asset, and decides whether to emit an entry intent, all
// gated by the kill switch's current level. Every phase reads events no
// later than the sequence number the cycle started at, and every output is
// itself an event — the cycle never holds state the log doesn't also hold.
package orchestrator

import (
	"time"

	"github.com/P-U-C/b1e55ed/pkg/finance"
)

// Asset is a tradable instrument identifier (e.g. "BTC-USD").
type Asset string

// SignalScore is one producer domain's opinion on one asset, normalized to
// [0,1] by the producer before it ever reaches the log.
type SignalScore struct {
	Domain    Domain    `json:"domain"`
	Asset     Asset     `json:"asset"`
	Score     float64   `json:"score"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Regime is the coarse market-state classification the Regime phase emits.
type Regime string

const (
	RegimeEarlyBull Regime = "EARLY_BULL"
	RegimeBull      Regime = "BULL"
	RegimeChop      Regime = "CHOP"
	RegimeBear      Regime = "BEAR"
	RegimeCrisis    Regime = "CRISIS"
)

// RegimeLeverageCap bounds position size by market regime: calmer regimes
// afford more leverage, CRISIS affords almost none.
var RegimeLeverageCap = map[Regime]float64{
	RegimeEarlyBull: 1.0,
	RegimeBull:      1.25,
	RegimeChop:      0.5,
	RegimeBear:      0.4,
	RegimeCrisis:    0.1,
}

// Features is the Regime phase's input: portfolio/market characteristics
// derived from recent signals, not raw producer output.
type Features struct {
	Trend        float64 // [-1,1], negative = downtrend
	Volatility   float64 // [0,1], normalized realized vol
	BasisFunding float64 // [-1,1], funding/basis proxy
	Sentiment    float64 // [-1,1]
}

// RegimeThresholds configures the Regime phase's classification boundaries.
type RegimeThresholds struct {
	CrisisVolatility float64
	BearTrend        float64
	BullTrend        float64
}

// DefaultRegimeThresholds mirrors the reference's coarse market-state
// boundaries; an operator with better-calibrated figures can override.
func DefaultRegimeThresholds() RegimeThresholds {
	return RegimeThresholds{CrisisVolatility: 0.8, BearTrend: -0.3, BullTrend: 0.3}
}

// OpposingFactor is one piece of counter-thesis evidence the Conviction
// phase enumerates once PCS clears the CTS trigger.
type OpposingFactor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"` // contribution to CTS, [0,1]
}

// ProducerHealth is the Quality phase's per-domain staleness verdict,
// emitted as a producer_health.<domain>.v1 event when a domain falls
// outside its freshness window.
type ProducerHealth struct {
	Domain              Domain    `json:"domain"`
	Asset               Asset     `json:"asset"`
	Stale               bool      `json:"stale"`
	AgeSeconds          float64   `json:"age_seconds"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	ObservedAt          time.Time `json:"observed_at"`
}

// RegimeChangedPayload is the regime.changed.v1 event body.
type RegimeChangedPayload struct {
	From     Regime   `json:"from"`
	To       Regime   `json:"to"`
	Features Features `json:"features"`
}

// IntentOpenPayload is the intent.open.v1 event body: a proposed position
// entry, not yet an execution — executors are an external collaborator.
type IntentOpenPayload struct {
	Asset         Asset         `json:"asset"`
	Direction     string        `json:"direction"` // "long" | "short"
	Conviction    float64       `json:"conviction"`
	PCS           float64       `json:"pcs"`
	CTS           float64       `json:"cts"`
	Regime        Regime        `json:"regime"`
	Size          finance.Money `json:"size"`
	Stop          float64       `json:"stop"`
	Target        float64       `json:"target"`
	ConvictionRef string        `json:"conviction_ref"`
}

// CyclePhase names the six pipeline stages, used in cycle.partial.v1 to
// report where a deadline was hit.
type CyclePhase string

const (
	PhaseCollection CyclePhase = "collection"
	PhaseQuality    CyclePhase = "quality"
	PhaseSynthesis  CyclePhase = "synthesis"
	PhaseRegime     CyclePhase = "regime"
	PhaseConviction CyclePhase = "conviction"
	PhaseDecision   CyclePhase = "decision"
)

// CycleStartedPayload, CyclePartialPayload, CycleCompletedPayload are the
// lifecycle events bracketing every cycle run.
type CycleStartedPayload struct {
	StartSeq uint64  `json:"start_seq"`
	Assets   []Asset `json:"assets"`
}

type CyclePartialPayload struct {
	Phase           CyclePhase `json:"phase"`
	AssetsCompleted []Asset    `json:"assets_completed"`
	AssetsRemaining []Asset    `json:"assets_remaining"`
	Reason          string     `json:"reason"`
}

type CycleCompletedPayload struct {
	StartSeq       uint64  `json:"start_seq"`
	EndSeq         uint64  `json:"end_seq"`
	Assets         []Asset `json:"assets"`
	IntentsEmitted int     `json:"intents_emitted"`
	// KillSwitchBlocked names every asset whose entry was approved by policy
	// but refused solely because the kill switch would not allow new
	// positions at its current level — distinct from an asset skipped for
	// low conviction, which never appears here.
	KillSwitchBlocked []Asset `json:"kill_switch_blocked,omitempty"`
}
