package httpapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewCache is a second-level, read-through cache in front of the
// Positions/Regime projections for dashboard-style read traffic. The
// projections themselves are already a cache over the event log per
// pkg/projections — this is a cache over that cache, and is never
// consulted on the write path.
type ViewCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// MemoryViewCache is the dependency-free default: correct, but every
// process has its own copy. Suitable for a single-node deployment or
// tests; a multi-process ingress tier should configure RedisViewCache
// instead.
type MemoryViewCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	clock   func() time.Time
}

type memoryCacheEntry struct {
	value   []byte
	expires time.Time
}

func NewMemoryViewCache() *MemoryViewCache {
	return &MemoryViewCache{entries: make(map[string]memoryCacheEntry), clock: time.Now}
}

// WithClock overrides the cache's notion of now, for deterministic TTL
// tests.
func (c *MemoryViewCache) WithClock(clock func() time.Time) *MemoryViewCache {
	c.clock = clock
	return c
}

func (c *MemoryViewCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || c.clock().After(entry.expires) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryViewCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryCacheEntry{value: value, expires: c.clock().Add(ttl)}
	return nil
}

// RedisViewCache backs ViewCache with Redis, for an ingress tier running
// more than one process in front of the same node.
type RedisViewCache struct {
	client *redis.Client
}

func NewRedisViewCache(client *redis.Client) *RedisViewCache {
	return &RedisViewCache{client: client}
}

func (c *RedisViewCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("httpapi: redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (c *RedisViewCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("httpapi: redis set %s: %w", key, err)
	}
	return nil
}
