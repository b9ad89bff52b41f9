package contributor

import (
	"context"
	"sync"
)

// Store is a fast contributor/attribution index. It is not the system of
// record — registration and submission are both appended to the event
// log, and a Store can always be rebuilt by replaying contributor.* and
// attribution.v1 events from genesis. What it exists for is O(1)
// "does this node id already exist" and "list this contributor's
// attributions" lookups without a full log scan on every submission.
type Store interface {
	SaveContributor(ctx context.Context, c Contributor) error
	GetContributor(ctx context.Context, id string) (Contributor, error)
	GetContributorByNodeID(ctx context.Context, nodeID string) (Contributor, bool, error)
	ListContributors(ctx context.Context) ([]Contributor, error)

	SaveAttribution(ctx context.Context, a Attribution) error
	GetAttribution(ctx context.Context, id string) (Attribution, error)
	ListAttributions(ctx context.Context, contributorID string) ([]Attribution, error)
}

// MemoryStore implements Store in-process.
type MemoryStore struct {
	mu            sync.RWMutex
	contributors  map[string]Contributor
	byNodeID      map[string]string // node id -> contributor id
	attributions  map[string]Attribution
	byContributor map[string][]string // contributor id -> attribution ids, in submission order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contributors:  make(map[string]Contributor),
		byNodeID:      make(map[string]string),
		attributions:  make(map[string]Attribution),
		byContributor: make(map[string][]string),
	}
}

func (m *MemoryStore) SaveContributor(ctx context.Context, c Contributor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contributors[c.ID] = c
	m.byNodeID[c.NodeID] = c.ID
	return nil
}

func (m *MemoryStore) GetContributor(ctx context.Context, id string) (Contributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contributors[id]
	if !ok {
		return Contributor{}, ErrContributorNotFound
	}
	return c, nil
}

func (m *MemoryStore) GetContributorByNodeID(ctx context.Context, nodeID string) (Contributor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byNodeID[nodeID]
	if !ok {
		return Contributor{}, false, nil
	}
	return m.contributors[id], true, nil
}

func (m *MemoryStore) ListContributors(ctx context.Context) ([]Contributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Contributor, 0, len(m.contributors))
	for _, c := range m.contributors {
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryStore) SaveAttribution(ctx context.Context, a Attribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.attributions[a.AttributionID]; !exists {
		m.byContributor[a.ContributorID] = append(m.byContributor[a.ContributorID], a.AttributionID)
	}
	m.attributions[a.AttributionID] = a
	return nil
}

func (m *MemoryStore) GetAttribution(ctx context.Context, id string) (Attribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attributions[id]
	if !ok {
		return Attribution{}, ErrAttributionNotFound
	}
	return a, nil
}

func (m *MemoryStore) ListAttributions(ctx context.Context, contributorID string) ([]Attribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byContributor[contributorID]
	out := make([]Attribution, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.attributions[id])
	}
	return out, nil
}
