// Package cache provides the process-local plaintext key cache of the key vault.
package cache

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

type entry struct {
	key       []byte
	expiresAt *time.Time
	cachedAt  time.Time
}

// Hit is a cache lookup result. Key is a copy owned by the caller.
type Hit struct {
	Key       []byte
	ExpiresAt *time.Time
	CachedAt  time.Time
}

// KeyCache is a bounded TTL cache of plaintext server keys.
//
// Entries expire TTL after insertion regardless of use. When an insert finds the cache
// full, the oldest fraction of entries by insertion time is evicted in one batch. Evicted
// key bytes are zeroed. All methods are safe for concurrent use.
type KeyCache struct {
	mu            sync.Mutex
	entries       map[uuid.UUID]*entry
	capacity      int
	ttl           time.Duration
	evictionRatio float64
	now           func() time.Time
}

// Option configures a KeyCache.
type Option func(*KeyCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *KeyCache) {
		c.now = now
	}
}

// New creates a KeyCache. Non-positive capacity defaults to 1 and a ratio outside (0, 1]
// defaults to 0.2.
func New(capacity int, ttl time.Duration, evictionRatio float64, opts ...Option) *KeyCache {
	if capacity < 1 {
		capacity = 1
	}
	if evictionRatio <= 0 || evictionRatio > 1 {
		evictionRatio = 0.2
	}
	c := &KeyCache{
		entries:       make(map[uuid.UUID]*entry, capacity),
		capacity:      capacity,
		ttl:           ttl,
		evictionRatio: evictionRatio,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached key for id. An entry older than the TTL is removed and reported as a miss.
func (c *KeyCache) Get(id uuid.UUID) (Hit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return Hit{}, false
	}
	if c.isStale(e) {
		c.remove(id, e)
		return Hit{}, false
	}

	return Hit{Key: clone(e.key), ExpiresAt: e.expiresAt, CachedAt: e.cachedAt}, true
}

// Put stores a copy of key. expiresAt is the record expiry, kept so hits can be rejected
// once the record itself has expired.
func (c *KeyCache) Put(id uuid.UUID, key []byte, expiresAt *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[id]; ok {
		c.remove(id, old)
	}
	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	c.entries[id] = &entry{key: clone(key), expiresAt: expiresAt, cachedAt: c.now()}
}

// Delete removes id from the cache and reports whether it was present.
func (c *KeyCache) Delete(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if ok {
		c.remove(id, e)
	}
	return ok
}

// Contains reports whether a fresh entry exists for id without copying the key.
func (c *KeyCache) Contains(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	return ok && !c.isStale(e)
}

// PurgeStale removes every entry older than the TTL and returns how many were removed.
func (c *KeyCache) PurgeStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.entries {
		if c.isStale(e) {
			c.remove(id, e)
			removed++
		}
	}
	return removed
}

// Clear zeroes and removes every entry.
func (c *KeyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, e := range c.entries {
		c.remove(id, e)
	}
}

// Len returns the number of entries, including stale ones not yet purged.
func (c *KeyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the configured maximum number of entries.
func (c *KeyCache) Capacity() int {
	return c.capacity
}

// TTL returns the configured entry lifetime.
func (c *KeyCache) TTL() time.Duration {
	return c.ttl
}

func (c *KeyCache) isStale(e *entry) bool {
	return c.ttl > 0 && c.now().Sub(e.cachedAt) >= c.ttl
}

// evictOldest must be called with mu held.
func (c *KeyCache) evictOldest() {
	count := int(math.Ceil(float64(c.capacity) * c.evictionRatio))
	count = max(count, 1)

	type aged struct {
		id       uuid.UUID
		cachedAt time.Time
	}
	order := make([]aged, 0, len(c.entries))
	for id, e := range c.entries {
		order = append(order, aged{id: id, cachedAt: e.cachedAt})
	}
	slices.SortFunc(order, func(a, b aged) int {
		return a.cachedAt.Compare(b.cachedAt)
	})

	for _, a := range order[:min(count, len(order))] {
		c.remove(a.id, c.entries[a.id])
	}
}

func (c *KeyCache) remove(id uuid.UUID, e *entry) {
	cryptoDomain.Zero(e.key)
	delete(c.entries, id)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
