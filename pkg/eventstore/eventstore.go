package eventstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/crypto"
	"github.com/google/uuid"
)

type traceIDContextKey struct{}

// WithTraceID attaches a distributed trace id to ctx so any event appended
// through a call carrying this context picks it up automatically, without
// every caller threading it through explicitly. The HTTP ingress layer
// calls this from its request-id middleware; most internal callers never
// need to.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDContextKey{}, traceID)
}

func traceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDContextKey{}).(string); ok {
		return id
	}
	return ""
}

// EventStore is the single entry point for appending to and reading from the
// hash-chained log. One writer EventStore exists per running node; any
// number of reader EventStores may exist alongside it (projections, the
// CLI's replay/export/verify subcommands) without coordination, since reads
// never mutate the log.
type EventStore struct {
	store  Store
	signer crypto.Signer // nil for a reader that cannot append
	lease  *writeLease   // nil for a reader
	mu     sync.Mutex
	clock  func() time.Time
}

// OpenWriter opens the log for both reading and appending. It acquires the
// exclusive write lease in dir, failing with ErrWriterBusy if another
// process already holds it, then ensures a genesis event exists and matches
// signer's public key.
func OpenWriter(ctx context.Context, dir string, store Store, signer crypto.Signer) (*EventStore, error) {
	if signer == nil {
		return nil, ErrSignerUnavailable
	}
	lease, err := acquireWriteLease(dir)
	if err != nil {
		return nil, err
	}

	es := &EventStore{store: store, signer: signer, lease: lease, clock: time.Now}
	if err := es.init(ctx); err != nil {
		_ = lease.release()
		return nil, err
	}
	return es, nil
}

// OpenReader opens the log for reading only. No lease is taken; readers
// never block each other or the writer.
func OpenReader(ctx context.Context, store Store) (*EventStore, error) {
	es := &EventStore{store: store, clock: time.Now}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return es, nil
}

func (es *EventStore) init(ctx context.Context) error {
	if err := es.store.Init(ctx); err != nil {
		return err
	}

	n, err := es.store.Len(ctx)
	if err != nil {
		return fmt.Errorf("eventstore: len: %w", err)
	}
	if n == 0 {
		return es.writeGenesis(ctx)
	}

	genesis, err := es.store.Get(ctx, GenesisSeq)
	if err != nil {
		return fmt.Errorf("eventstore: read genesis: %w", err)
	}
	wantPrev, err := genesisPrevHash(es.signer.PublicKeyBytes())
	if err != nil {
		return err
	}
	if genesis.PrevHash != wantPrev {
		return ErrGenesisMismatch
	}
	return nil
}

func (es *EventStore) writeGenesis(ctx context.Context) error {
	prevHash, err := genesisPrevHash(es.signer.PublicKeyBytes())
	if err != nil {
		return err
	}
	createdAt := es.clock()
	payload, err := marshalPayload(struct {
		PublicKey string    `json:"public_key"`
		NodeID    string    `json:"node_id"`
		CreatedAt time.Time `json:"created_at"`
	}{es.signer.PublicKey(), es.signer.KeyID(), createdAt})
	if err != nil {
		return err
	}

	e := Event{
		Seq:       GenesisSeq,
		Type:      KindGenesis,
		Timestamp: createdAt,
		Payload:   payload,
		PrevHash:  prevHash,
	}
	return es.sealAndAppendDiscard(ctx, e)
}

// sealAndAppend computes the hash and signature for e, then persists it.
// Callers must already hold es.mu.
func (es *EventStore) sealAndAppend(ctx context.Context, e Event) (Event, error) {
	if es.signer == nil {
		return Event{}, ErrSignerUnavailable
	}

	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}
	if e.TraceID == "" {
		e.TraceID = traceIDFromContext(ctx)
	}

	hash, err := computeHash(e)
	if err != nil {
		return Event{}, err
	}
	e.Hash = hash
	e.SignerKeyID = es.signer.PublicKey()

	sig, err := es.signer.Sign(signingInput(hash, e.SignerKeyID))
	if err != nil {
		return Event{}, fmt.Errorf("eventstore: sign event: %w", err)
	}
	e.Signature = sig

	if err := es.store.Append(ctx, e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// overload so writeGenesis can reuse sealAndAppend's error shape without
// needing the returned event.
func (es *EventStore) sealAndAppendDiscard(ctx context.Context, e Event) error {
	_, err := es.sealAndAppend(ctx, e)
	return err
}

// Append signs and persists one new event whose payload is the JSON
// marshaling of v, returning the fully-sealed event including its
// sequence number, hash, and signature.
func (es *EventStore) Append(ctx context.Context, kind Kind, v interface{}) (Event, error) {
	payload, err := marshalPayload(v)
	if err != nil {
		return Event{}, err
	}
	return es.AppendRaw(ctx, kind, payload)
}

// AppendRaw is Append for callers that already have a marshaled payload.
func (es *EventStore) AppendRaw(ctx context.Context, kind Kind, payload []byte) (Event, error) {
	return es.AppendRawWithMeta(ctx, kind, payload, AppendMeta{})
}

// AppendRawWithMeta is AppendRaw for a caller at a system boundary that
// knows the event's provenance directly — who submitted it and under
// which trace — rather than leaving both to their defaults.
func (es *EventStore) AppendRawWithMeta(ctx context.Context, kind Kind, payload []byte, meta AppendMeta) (Event, error) {
	if es.lease == nil {
		return Event{}, ErrWriterBusy
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	head, err := es.store.Head(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("eventstore: read head: %w", err)
	}

	e := Event{
		Seq:       head.Seq + 1,
		Type:      kind,
		Timestamp: es.clock(),
		Payload:   payload,
		Source:    meta.Source,
		TraceID:   meta.TraceID,
		DedupeKey: meta.DedupeKey,
		PrevHash:  head.Hash,
	}
	sealed, err := es.sealAndAppend(ctx, e)
	if err != nil {
		return Event{}, err
	}

	if sealed.Seq%CheckpointInterval == 0 {
		if err := es.writeCheckpointLocked(ctx, sealed); err != nil {
			return sealed, fmt.Errorf("eventstore: append succeeded but checkpoint failed: %w", err)
		}
	}
	return sealed, nil
}

// AppendInput is one event to append as part of a batch. Source and TraceID
// are optional, same defaulting rules as AppendMeta.
type AppendInput struct {
	Type    Kind
	Payload interface{}
	Source  string
	TraceID string
}

// AtomicAppender is implemented by Store backends that can commit a group
// of events as a single durable unit: either every event in the batch
// lands or none does. AppendBatch requires it — a Store that cannot offer
// that guarantee cannot honor AppendBatch's contract.
type AtomicAppender interface {
	AppendAtomic(ctx context.Context, events []Event) error
}

// AppendBatch seals every item in the batch — chaining each one's prev_hash
// to the one before it in memory, without touching the store — then commits
// the whole sealed batch in one call to the store's AppendAtomic. A failure
// at any point before that call, or inside it, leaves the log exactly as it
// was: either the entire batch becomes durable, in order, or none of it
// does. Checkpoint emission runs after the commit succeeds and is not part
// of the same transaction; a checkpoint write failure is reported but does
// not unwind the already-durable batch.
func (es *EventStore) AppendBatch(ctx context.Context, items []AppendInput) ([]Event, error) {
	if es.lease == nil {
		return nil, ErrWriterBusy
	}
	if es.signer == nil {
		return nil, ErrSignerUnavailable
	}
	appender, ok := es.store.(AtomicAppender)
	if !ok {
		return nil, fmt.Errorf("eventstore: store does not support atomic batch append")
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	head, err := es.store.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventstore: read head: %w", err)
	}

	ctxTraceID := traceIDFromContext(ctx)
	sealed := make([]Event, 0, len(items))
	prevHash := head.Hash
	nextSeq := head.Seq + 1
	for _, item := range items {
		payload, err := marshalPayload(item.Payload)
		if err != nil {
			return nil, err
		}
		traceID := item.TraceID
		if traceID == "" {
			traceID = ctxTraceID
		}
		e := Event{
			EventID:   uuid.New().String(),
			Seq:       nextSeq,
			Type:      item.Type,
			Timestamp: es.clock(),
			Payload:   payload,
			Source:    item.Source,
			TraceID:   traceID,
			PrevHash:  prevHash,
		}
		hash, err := computeHash(e)
		if err != nil {
			return nil, err
		}
		e.Hash = hash
		e.SignerKeyID = es.signer.PublicKey()
		sig, err := es.signer.Sign(signingInput(hash, e.SignerKeyID))
		if err != nil {
			return nil, fmt.Errorf("eventstore: sign event: %w", err)
		}
		e.Signature = sig

		sealed = append(sealed, e)
		prevHash = e.Hash
		nextSeq++
	}

	if err := appender.AppendAtomic(ctx, sealed); err != nil {
		return nil, fmt.Errorf("eventstore: append batch: %w", err)
	}

	for _, e := range sealed {
		if e.Seq%CheckpointInterval == 0 {
			if err := es.writeCheckpointLocked(ctx, e); err != nil {
				return sealed, fmt.Errorf("eventstore: batch append succeeded but checkpoint failed: %w", err)
			}
		}
	}
	return sealed, nil
}

func (es *EventStore) writeCheckpointLocked(ctx context.Context, head Event) error {
	cp := Checkpoint{
		Seq:       head.Seq,
		ChainHash: head.Hash,
		CreatedAt: es.clock(),
	}
	sig, err := es.signer.Sign([]byte(cp.ChainHash))
	if err != nil {
		return fmt.Errorf("eventstore: sign checkpoint: %w", err)
	}
	cp.Signature = sig
	cp.SignerKeyID = es.signer.PublicKey()

	_, err = marshalPayload(cp) // validate it round-trips before anything else depends on it
	if err != nil {
		return err
	}
	return es.store.SaveCheckpoint(ctx, cp)
}

// Head returns the most recently appended event.
func (es *EventStore) Head(ctx context.Context) (Event, error) {
	return es.store.Head(ctx)
}

// Get returns the event at the given sequence number.
func (es *EventStore) Get(ctx context.Context, seq uint64) (Event, error) {
	return es.store.Get(ctx, seq)
}

// Range returns events in [fromSeq, toSeq] inclusive, ascending.
func (es *EventStore) Range(ctx context.Context, fromSeq, toSeq uint64) ([]Event, error) {
	return es.store.Range(ctx, fromSeq, toSeq)
}

// Len returns the number of events in the log, including genesis.
func (es *EventStore) Len(ctx context.Context) (uint64, error) {
	return es.store.Len(ctx)
}

// LatestOfType scans backward from the head for the most recent event of
// kind, returning ErrNotFound if none exists. Restoring FSM state (the kill
// switch level, the latest karma settlement policy) on boot is the main
// caller; logs are expected to stay small enough that a backward scan is
// cheaper than maintaining a secondary index per kind.
func (es *EventStore) LatestOfType(ctx context.Context, kind Kind) (Event, error) {
	head, err := es.store.Head(ctx)
	if err != nil {
		if err == ErrNotFound {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	const window = uint64(500)
	for hi := head.Seq; ; {
		lo := GenesisSeq
		if hi-GenesisSeq > window {
			lo = hi - window + 1
		}
		events, err := es.store.Range(ctx, lo, hi)
		if err != nil {
			return Event{}, err
		}
		for i := len(events) - 1; i >= 0; i-- {
			if events[i].Type == kind {
				return events[i], nil
			}
		}
		if lo == GenesisSeq {
			break
		}
		hi = lo - 1
	}
	return Event{}, ErrNotFound
}

// Close releases the write lease, if held. Readers have nothing to release.
func (es *EventStore) Close() error {
	return es.lease.release()
}

// WithClock overrides the clock used for event timestamps, for testing.
func (es *EventStore) WithClock(clock func() time.Time) *EventStore {
	es.clock = clock
	return es
}
