package repo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/miradorstack/fieldops/internal/cache"
)

// recordingCache is an in-memory cache that remembers the TTL of each write
// and can be told to fail reads or deletes.
type recordingCache struct {
	*cache.MemoryProvider

	mu     sync.Mutex
	ttls   map[string]time.Duration
	sets   int
	getErr error
	delErr error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{MemoryProvider: cache.NewMemoryProvider(), ttls: make(map[string]time.Duration)}
}

func (c *recordingCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.MemoryProvider.Get(ctx, key)
}

func (c *recordingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.ttls[key] = ttl
	c.sets++
	c.mu.Unlock()
	return c.MemoryProvider.Set(ctx, key, value, ttl)
}

func (c *recordingCache) Del(ctx context.Context, key string) error {
	if c.delErr != nil {
		return c.delErr
	}
	return c.MemoryProvider.Del(ctx, key)
}

func (c *recordingCache) has(key string) bool {
	_, err := c.MemoryProvider.Get(context.Background(), key)
	return !errors.Is(err, cache.ErrCacheMiss)
}
