package reservoir

import (
	"sync"
	"time"

	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

// Cache is an optional L1 over Available results. Writes never update an
// entry in place; they invalidate it and the next read repopulates. A nil
// *Cache is valid and disables caching entirely.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   shared.Clock
}

type cacheEntry struct {
	rows      []*passenger.Passenger
	expiresAt time.Time
}

// NewCache creates an L1 cache whose entries live for ttl. A non-positive
// ttl disables caching: the returned nil cache stores nothing and never hits.
func NewCache(ttl time.Duration, clock shared.Clock) *Cache {
	if ttl <= 0 {
		return nil
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *Cache) get(key string) ([]*passenger.Passenger, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.rows, true
}

func (c *Cache) set(key string, rows []*passenger.Passenger) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{rows: rows, expiresAt: c.clock.Now().Add(c.ttl)}
}

// invalidate drops every entry for the given scope prefix.
func (c *Cache) invalidate(prefix string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}
