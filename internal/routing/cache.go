// README: TTL cache over a routing provider, keyed by leg endpoints.
package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"unipool/internal/types"
)

// Cache memoizes leg lookups for a bounded time. Departure time is not part
// of the key: within the TTL the traffic difference is noise compared to the
// cost of a provider round-trip per candidate leg.
type Cache struct {
	next Provider
	ttl  time.Duration

	mu    sync.RWMutex
	store map[string]cacheEntry
}

type cacheEntry struct {
	leg Leg
	ts  time.Time
}

func NewCache(next Provider, ttl time.Duration) *Cache {
	return &Cache{next: next, ttl: ttl, store: make(map[string]cacheEntry)}
}

func (c *Cache) Leg(ctx context.Context, from, to types.Point, departure time.Time) (Leg, error) {
	k := legKey(from, to)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if ok && time.Since(e.ts) <= c.ttl {
		return e.leg, nil
	}

	leg, err := c.next.Leg(ctx, from, to, departure)
	if err != nil {
		return Leg{}, err
	}
	c.mu.Lock()
	c.store[k] = cacheEntry{leg: leg, ts: time.Now()}
	c.mu.Unlock()
	return leg, nil
}

func legKey(a, b types.Point) string {
	return fmt.Sprintf("%.6f,%.6f->%.6f,%.6f", a.Lat, a.Lng, b.Lat, b.Lng)
}
