// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package override

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds repository load under high request volume while
// keeping the staleness window short.
const DefaultCacheTTL = 30 * time.Second

// cacheEntry holds a lookup result, including negative results, so a miss
// does not hammer the repository on every request.
type cacheEntry struct {
	override  *RateOverride
	fetchedAt time.Time
}

// Cache is a per-adapter-keyed TTL cache for active override lookups.
// There is no background refresh: entries expire lazily by TTL comparison at
// read time, and mutations invalidate their adapter's entry explicitly.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache with the given TTL. A non-positive TTL falls back
// to DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached override for an adapter. The second return value
// reports whether a fresh entry was present; a nil override with ok=true is a
// cached negative result.
func (c *Cache) Get(adapterID string) (*RateOverride, bool) {
	c.mu.RLock()
	entry, ok := c.entries[adapterID]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.override, true
}

// Put stores a lookup result for an adapter. A nil override caches the
// absence of an active override.
func (c *Cache) Put(adapterID string, o *RateOverride) {
	c.mu.Lock()
	c.entries[adapterID] = cacheEntry{override: o, fetchedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the entry for an adapter.
func (c *Cache) Invalidate(adapterID string) {
	c.mu.Lock()
	delete(c.entries, adapterID)
	c.mu.Unlock()
}
