package places

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a nearby search result stays fresh. Restaurant
// data changes slowly and the public Overpass interpreter is rate limited,
// so repeated lookups from the same area should not hit it again.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	results   []Restaurant
	expiresAt time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// CachedProvider wraps a Provider with an in-memory TTL cache. Coordinates
// are bucketed to roughly a city block so nearby clients share entries.
type CachedProvider struct {
	inner Provider
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// NewCachedProvider wraps inner with a result cache. A non-positive ttl
// falls back to DefaultCacheTTL.
func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedProvider{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
	}
}

// cacheKey buckets coordinates to three decimals, about 110 meters.
func cacheKey(q Query) string {
	return fmt.Sprintf("%.3f:%.3f:%d:%s", q.Lat, q.Lng, q.RadiusMeters, q.Cuisine)
}

// Nearby returns a cached result when fresh, otherwise asks the inner
// provider and caches what it returns. Errors are never cached.
func (p *CachedProvider) Nearby(ctx context.Context, q Query) ([]Restaurant, error) {
	key := cacheKey(q)

	p.mu.RLock()
	entry, ok := p.entries[key]
	p.mu.RUnlock()
	if ok && !entry.isExpired() {
		return entry.results, nil
	}

	results, err := p.inner.Nearby(ctx, q)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.entries[key] = &cacheEntry{results: results, expiresAt: time.Now().Add(p.ttl)}
	// Opportunistic cleanup keeps the map from growing without bound.
	for k, e := range p.entries {
		if e.isExpired() {
			delete(p.entries, k)
		}
	}
	p.mu.Unlock()

	return results, nil
}
