package sql

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// PredicateCache keeps built predicates for reuse. Predicates are immutable,
// so a cached value can be handed to any number of goroutines.
type PredicateCache struct {
	mu      sync.RWMutex
	byKey   map[string]Predicate
	byHash  map[uint64][]Predicate
	group   singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
	builds  atomic.Int64
	interns atomic.Int64
}

// NewPredicateCache returns an empty cache.
func NewPredicateCache() *PredicateCache {
	return &PredicateCache{
		byKey:  make(map[string]Predicate),
		byHash: make(map[uint64][]Predicate),
	}
}

// GetOrBuild returns the predicate cached under key, or calls build and
// caches its result. Concurrent calls for the same key share a single
// build. Failed builds are not cached.
//
//	p, err := cache.GetOrBuild("active-users", func() (sql.Predicate, error) {
//		return b.P().WhereInQuery(ctx, "UserID", activeUsers)
//	})
func (c *PredicateCache) GetOrBuild(key string, build func() (Predicate, error)) (Predicate, error) {
	if p, ok := c.Get(key); ok {
		return p, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if p, ok := c.lookup(key); ok {
			return p, nil
		}
		c.builds.Add(1)
		p, err := build()
		if err == nil {
			err = p.Err()
		}
		if err != nil {
			return Predicate{}, err
		}
		c.mu.Lock()
		c.byKey[key] = p
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return Predicate{}, err
	}
	return v.(Predicate), nil
}

// Get returns the predicate cached under key.
func (c *PredicateCache) Get(key string) (Predicate, bool) {
	p, ok := c.lookup(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return p, ok
}

func (c *PredicateCache) lookup(key string) (Predicate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byKey[key]
	return p, ok
}

// Intern returns a previously interned predicate equal to p, or stores and
// returns p.
func (c *PredicateCache) Intern(p Predicate) Predicate {
	h := Hash(p)
	c.mu.RLock()
	for _, q := range c.byHash[h] {
		if Equal(p, q) {
			c.mu.RUnlock()
			c.hits.Add(1)
			return q
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.byHash[h] {
		if Equal(p, q) {
			c.hits.Add(1)
			return q
		}
	}
	c.misses.Add(1)
	c.interns.Add(1)
	c.byHash[h] = append(c.byHash[h], p)
	return p
}

// Delete removes the predicate cached under key.
func (c *PredicateCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byKey, key)
}

// Len returns the number of cached and interned predicates.
func (c *PredicateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.byKey)
	for _, ps := range c.byHash {
		n += len(ps)
	}
	return n
}

// Clear removes every predicate.
func (c *PredicateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = make(map[string]Predicate)
	c.byHash = make(map[uint64][]Predicate)
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Builds  int64
	Interns int64
}

// Stats returns a snapshot of the cache counters.
func (c *PredicateCache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Builds:  c.builds.Load(),
		Interns: c.interns.Load(),
	}
}
