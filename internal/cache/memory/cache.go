// Package memory provides an in-process TTL cache.
package memory

import (
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a thread-safe map whose entries expire after a fixed TTL.
// Expired entries are swept on write.
type Cache[V any] struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[string]item[V]
	now  func() time.Time
}

// New creates a cache. A non-positive ttl disables caching: Get always misses.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:  ttl,
		data: make(map[string]item[V]),
		now:  time.Now,
	}
}

// Get returns the cached value for key when it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || c.ttl <= 0 {
		return zero, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.data[key]
	if !ok || !c.now().Before(it.expiresAt) {
		return zero, false
	}
	return it.value, true
}

// Set stores value under key for the cache TTL.
func (c *Cache[V]) Set(key string, value V) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, it := range c.data {
		if !now.Before(it.expiresAt) {
			delete(c.data, k)
		}
	}
	c.data[key] = item[V]{value: value, expiresAt: now.Add(c.ttl)}
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
