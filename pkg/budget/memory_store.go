package budget

import (
	"context"
	"sync"
)

// MemoryStorage implements Storage in memory. Thread-safe via RWMutex.
type MemoryStorage struct {
	mu     sync.RWMutex
	budget *Budget
	daily  int64
	monthly int64
	hasLimits bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Get(ctx context.Context) (*Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.budget == nil {
		return nil, nil
	}
	val := *s.budget
	return &val, nil
}

func (s *MemoryStorage) Set(ctx context.Context, budget *Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	val := *budget
	s.budget = &val
	return nil
}

func (s *MemoryStorage) Limits(ctx context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hasLimits {
		return s.daily, s.monthly, nil
	}
	// Defaults if not set: $1,000/day, $20,000/month.
	return 100000, 2000000, nil
}

func (s *MemoryStorage) SetLimits(ctx context.Context, daily, monthly int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily, s.monthly = daily, monthly
	s.hasLimits = true
	return nil
}
