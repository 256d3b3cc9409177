// Package cache holds the read-path cache the engine keeps property
// snapshots in between writes.
package cache

import (
	"sync"
	"time"
)

// Cache is a TTL'd key-value store. Implementations must be safe for
// concurrent use; a nil *TTLCache behaves like a NoopCache.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
}

type snapshot[V any] struct {
	value    V
	deadline int64 // unix nanos, 0 means never expires
}

// TTLCache is an in-memory cache with per-entry expiry. Expired
// entries are dropped lazily by the read that finds them.
type TTLCache[K comparable, V any] struct {
	mu        sync.Mutex
	snapshots map[K]snapshot[V]
}

func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{snapshots: make(map[K]snapshot[V])}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snapshots[key]
	if !ok {
		return zero, false
	}
	if snap.deadline != 0 && time.Now().UnixNano() > snap.deadline {
		delete(c.snapshots, key)
		return zero, false
	}
	return snap.value, true
}

// Set stores a value. A zero or negative ttl keeps the entry until it
// is deleted or overwritten.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if c == nil {
		return
	}
	var deadline int64
	if ttl > 0 {
		deadline = time.Now().Add(ttl).UnixNano()
	}
	c.mu.Lock()
	c.snapshots[key] = snapshot[V]{value: value, deadline: deadline}
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.snapshots, key)
	c.mu.Unlock()
}

// Len reports how many entries are held, counting expired ones that no
// read has evicted yet.
func (c *TTLCache[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshots)
}

// NoopCache misses every read and drops every write. It stands in for
// TTLCache where caching is unwanted.
type NoopCache[K comparable, V any] struct{}

func (NoopCache[K, V]) Get(key K) (V, bool) {
	var zero V
	return zero, false
}

func (NoopCache[K, V]) Set(key K, value V, ttl time.Duration) {}

func (NoopCache[K, V]) Delete(key K) {}
