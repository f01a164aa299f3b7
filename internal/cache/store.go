// Package cache stores upstream response bodies for a bounded time so that
// repeated dashboard polls and proxy calls do not each spend N2YO quota.
//
// Two backends are provided: an in-memory map swept by a background loop,
// and Redis for sharing the cache between several proxy processes.
package cache

import (
	"context"
	"time"
)

// Store is a TTL-bounded byte cache keyed by request key.
type Store interface {
	// Get returns the cached value and whether it was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. A non-positive ttl is a no-op.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Stats reports counters for the stats endpoint.
	Stats(ctx context.Context) Stats
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Backend   string `json:"backend"`
	Entries   int    `json:"entries"`
	SizeBytes int64  `json:"size_bytes"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
}
