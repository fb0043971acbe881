package aggregation

import (
	"context"
	"sync"
	"time"
)

// Cache holds the most recent successful fetch result per
// (operation, datasourceId) key, bounded by a TTL. Concurrent readers may
// race benignly; last write wins on refresh.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	Invalidate(ctx context.Context, key string)
}

// NoopCache disables caching. Every read goes to the adapter.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (NoopCache) Set(ctx context.Context, key string, val []byte)    {}
func (NoopCache) Invalidate(ctx context.Context, key string)         {}

type memoryEntry struct {
	val       []byte
	fetchedAt time.Time
}

// MemoryCache is the in-process reference Cache. Entries are checked lazily
// on read; there is no background eviction.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// NewMemoryCache returns a cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{data: map[string]memoryEntry{}, ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) > c.ttl {
		delete(c.data, key)
		return nil, false
	}
	return e.val, true
}

func (c *MemoryCache) Set(ctx context.Context, key string, val []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = memoryEntry{val: val, fetchedAt: c.now()}
}

func (c *MemoryCache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}
