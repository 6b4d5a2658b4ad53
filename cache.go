package wherekit

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache is the interface for caching materialized nested query results.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error
}

// CacheKey identifies the result of a nested query.
type CacheKey struct {
	Source string // Data source the query runs against
	Query  string // Sub-select text
	Params string // Rendered parameter values
}

// String returns the string representation of the cache key. Query and
// parameters are hashed to keep keys short.
func (k CacheKey) String() string {
	d := xxhash.New()
	_, _ = d.WriteString(k.Query)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(k.Params)
	return "wherekit:" + k.Source + ":" + strconv.FormatUint(d.Sum64(), 16)
}
