package eventstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store, used by tests and by short-lived
// tooling (like a dry-run replay) that has no durability requirement.
type MemoryStore struct {
	mu          sync.RWMutex
	events      []Event
	checkpoints []Checkpoint

	// FaultInjector, when set, is called with every batch passed to
	// AppendAtomic just before it would be committed; returning an error
	// aborts the whole batch without mutating the log. Tests use it to
	// exercise the all-or-nothing contract of AppendBatch without a real
	// database to fail underneath it.
	FaultInjector func([]Event) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Init(ctx context.Context) error { return nil }

func (m *MemoryStore) Append(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// AppendAtomic commits events as a single unit: if FaultInjector rejects the
// batch, none of it is appended.
func (m *MemoryStore) AppendAtomic(ctx context.Context, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FaultInjector != nil {
		if err := m.FaultInjector(events); err != nil {
			return err
		}
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *MemoryStore) Head(ctx context.Context) (Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.events) == 0 {
		return Event{}, ErrNotFound
	}
	return m.events[len(m.events)-1], nil
}

func (m *MemoryStore) Get(ctx context.Context, seq uint64) (Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.events {
		if e.Seq == seq {
			return e, nil
		}
	}
	return Event{}, ErrNotFound
}

func (m *MemoryStore) Range(ctx context.Context, fromSeq, toSeq uint64) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Event
	for _, e := range m.events {
		if e.Seq >= fromSeq && e.Seq <= toSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) Len(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.events)), nil
}

// DeleteRange removes every stored event with fromSeq <= seq <= toSeq,
// simulating on-disk truncation (dropped rows) for tests that exercise
// corruption detection without standing up a real database to mutate.
func (m *MemoryStore) DeleteRange(fromSeq, toSeq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0:0]
	for _, e := range m.events {
		if e.Seq >= fromSeq && e.Seq <= toSeq {
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
}

func (m *MemoryStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = append(m.checkpoints, cp)
	return nil
}

func (m *MemoryStore) LatestCheckpoint(ctx context.Context) (Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.checkpoints) == 0 {
		return Checkpoint{}, ErrNotFound
	}
	return m.checkpoints[len(m.checkpoints)-1], nil
}
