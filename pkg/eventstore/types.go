// Package eventstore implements the append-only, hash-chained event log that
// every other component treats as ground truth. Nothing observes node state
// except by reading this log or a projection rebuilt from it.
package eventstore

import (
	"encoding/json"
	"errors"
	"time"
)

// GenesisSeed is hashed together with the node's public key to derive the
// genesis event's prev_hash, so two nodes with different keys can never
// produce colliding chains.
const GenesisSeed = "b1e55ed-genesis"

// GenesisSeq is the sequence number of the genesis event. Every other event
// in the log has seq == its position counted from here, so a log's event
// count equals (tip seq - GenesisSeq + 1) when no events are missing.
const GenesisSeq uint64 = 0

// CheckpointInterval is how many events elapse between signed checkpoints.
// Checkpoints let a verifier confirm a truncated tail of the log was never
// part of the signed history without replaying the whole chain.
const CheckpointInterval = 1000

// Kind identifies the well-known event types that cross package
// boundaries. Producers are free to emit other types; these are the ones
// other packages pattern-match on.
type Kind string

const (
	KindGenesis             Kind = "genesis.v1"
	KindCheckpoint          Kind = "checkpoint.v1"
	KindCycleStarted        Kind = "cycle.started.v1"
	KindCyclePartial        Kind = "cycle.partial.v1"
	KindCycleCompleted      Kind = "cycle.completed.v1"
	KindKillSwitchChanged   Kind = "system.kill_switch.v1"
	KindContributorRegister Kind = "contributor.register.v1"
	KindAttribution         Kind = "attribution.v1"
	KindKarmaIntent         Kind = "karma.intent.v1"
	KindKarmaSettle         Kind = "karma.settle.v1"
	KindKarmaReceipt        Kind = "karma.receipt.v1"
	KindKarmaPolicyChange   Kind = "karma.policy_change.v1"
	KindRegimeChanged       Kind = "regime.changed.v1"
	KindIntentOpen          Kind = "intent.open.v1"
	KindWeightsAdjusted     Kind = "weights.adjusted.v1"
)

// SignalPrefix and ProducerHealthPrefix namespace the dynamically-typed
// events the orchestrator's Collection and Quality phases consume/emit per
// producer domain (e.g. "signal.ta.rsi.v1", "producer_health.onchain.v1").
// There is no fixed Kind for these since the domain is part of the type.
const (
	SignalPrefix         = "signal."
	ProducerHealthPrefix = "producer_health."
)

// Event is one entry in the hash-chained log. Hash is the SHA-256 digest,
// hex-encoded, of the JCS-canonicalized signable subset of the fields:
// EventID, DedupeKey, Hash, Signature and SignerKeyID are not part of it.
// Signature is computed over the hex Hash, a "|" separator, and the
// signer's key ID.
type Event struct {
	// EventID is a random identifier distinct from Seq, generated fresh at
	// append time. Seq is the log's own ordering key and is stable only
	// within one chain; EventID lets a consumer (a dedupe table, an
	// external audit log) name one specific event without any dependency
	// on chain position.
	EventID     string          `json:"event_id"`
	Seq         uint64          `json:"seq"`
	Type        Kind            `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
	// Source names the external system or endpoint that produced this
	// event (e.g. "httpapi:append_event", "producer:ta"). Empty for
	// events a core package appends on its own behalf.
	Source string `json:"source,omitempty"`
	// TraceID links this event back to the distributed trace it was
	// appended under, when one exists. Populated automatically from the
	// request context at the HTTP boundary; empty for background work
	// with no inbound trace.
	TraceID string `json:"trace_id,omitempty"`
	// DedupeKey is the idempotency key a boundary caller submitted with this
	// event, if any. The primary dedupe path is the in-memory response cache
	// at the HTTP ingress; this column is a storage-level backstop enforced
	// by UNIQUE(type, dedupe_key), so a retried submission that slips past
	// the cache (a restart, a race between two requests) still cannot
	// double-append. Empty for the overwhelming majority of events, which
	// carry no idempotency key at all.
	DedupeKey   string `json:"dedupe_key,omitempty"`
	PrevHash    string `json:"prev_hash"`
	Hash        string `json:"hash"`
	Signature   string `json:"signature"`
	SignerKeyID string `json:"signer_key_id"`
}

// AppendMeta carries boundary-supplied provenance for one event — which
// external system produced it, which distributed trace it belongs to, and
// which idempotency key (if any) it was submitted under. None are required:
// an internal caller appending its own event leaves all three empty, and
// TraceID falls back to whatever WithTraceID attached to the context.
type AppendMeta struct {
	Source    string
	TraceID   string
	DedupeKey string
}

// signable is the subset of Event that feeds the hash. A dedicated type
// (rather than Event with fields blanked) keeps the hash input shape fixed
// even if Event grows unrelated bookkeeping fields later. EventID is
// deliberately excluded — it identifies the row, not what happened — but
// Source and TraceID are included, so provenance cannot be rewritten
// without breaking the chain.
type signable struct {
	Seq       uint64          `json:"seq"`
	Type      Kind            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Source    string          `json:"source"`
	TraceID   string          `json:"trace_id"`
	PrevHash  string          `json:"prev_hash"`
}

// Checkpoint is a signed attestation of the chain hash at a given sequence
// number, taken every CheckpointInterval events. Fast verification starts
// from the most recent checkpoint at or before the requested sequence
// instead of replaying from genesis.
type Checkpoint struct {
	Seq         uint64    `json:"seq"`
	ChainHash   string    `json:"chain_hash"`
	Signature   string    `json:"signature"`
	SignerKeyID string    `json:"signer_key_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sentinel error kinds. Every fatal condition the writer can hit is one of
// these; callers should treat anything wrapping them as non-retryable
// without operator intervention.
var (
	// ErrWriterBusy means another process (or goroutine) already holds the
	// exclusive write lease.
	ErrWriterBusy = errors.New("eventstore: writer busy")
	// ErrChainBroken means a stored event's prev_hash does not match the
	// hash of the event before it. The log cannot be trusted past this
	// point without operator investigation.
	ErrChainBroken = errors.New("eventstore: chain broken")
	// ErrGenesisMismatch means the log's stored genesis event does not
	// match the genesis this node's identity would produce — almost always
	// means the event log belongs to a different node or key.
	ErrGenesisMismatch = errors.New("eventstore: genesis mismatch")
	// ErrSignerUnavailable means an append was attempted without a usable
	// signing key. Unlike the other three, this is a startup condition, not
	// a corruption one.
	ErrSignerUnavailable = errors.New("eventstore: signer unavailable")
	// ErrEmptyLog is returned by operations that require at least a
	// genesis event to exist.
	ErrEmptyLog = errors.New("eventstore: log is empty")
)
