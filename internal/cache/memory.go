package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value      []byte
	expiration time.Time
}

// MemoryCache is a concurrency-safe in-memory Cache, grounded on the
// teacher's infrastructure/cache.Cache, generalized from an any-typed
// value store to a plain []byte store (callers own JSON encoding) and
// narrowed to the operations the API layer actually needs.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry

	stopCleanup chan struct{}
}

// NewMemoryCache starts a background sweep that evicts expired entries
// every cleanupInterval so an idle cache doesn't grow unbounded between
// reads.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	c := &MemoryCache{
		entries:     make(map[string]entry),
		stopCleanup: make(chan struct{}),
	}
	go c.runCleanup(cleanupInterval)
	return c
}

var _ Cache = (*MemoryCache)(nil)

func (c *MemoryCache) runCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiration) {
			delete(c.entries, k)
		}
	}
}

// Close stops the background sweep goroutine.
func (c *MemoryCache) Close() {
	close(c.stopCleanup)
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiration) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiration: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) InvalidatePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}
