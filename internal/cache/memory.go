package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kimxines02/AstroNext/internal/metrics"
)

const defaultSweepInterval = 30 * time.Second

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Expired entries are invisible to Get
// immediately and are physically removed by the sweep loop started with
// Start. Safe for concurrent use by multiple goroutines.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry

	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewMemoryStore creates an empty store. sweepInterval <= 0 uses 30s.
func NewMemoryStore(sweepInterval time.Duration, logger *slog.Logger) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	return &MemoryStore{
		entries:       make(map[string]*entry),
		sweepInterval: sweepInterval,
		now:           time.Now,
		logger:        logger,
	}
}

// Get returns a copy of the value for key if present and not yet expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if ok && s.now().Before(e.expiresAt) {
		s.hits.Add(1)
		return append([]byte(nil), e.value...), true, nil
	}
	s.misses.Add(1)
	return nil, false, nil
}

// Set stores a copy of value until now+ttl.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	e := &entry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	}

	s.mu.Lock()
	s.entries[key] = e
	count := len(s.entries)
	s.mu.Unlock()

	metrics.SetCacheEntries(count)
	return nil
}

// Start runs the sweep loop until ctx is cancelled.
func (s *MemoryStore) Start(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cache sweeper stopped")
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

// evictExpired removes entries whose TTL has passed.
func (s *MemoryStore) evictExpired() int {
	now := s.now()
	var removed int

	s.mu.Lock()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	count := len(s.entries)
	s.mu.Unlock()

	if removed > 0 {
		s.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		metrics.SetCacheEntries(count)
		s.logger.Debug("cache eviction", "entries_removed", removed)
	}
	return removed
}

// Stats returns current cache statistics.
func (s *MemoryStore) Stats(context.Context) Stats {
	s.mu.RLock()
	count := len(s.entries)
	var size int64
	for key, e := range s.entries {
		size += int64(len(key) + len(e.value))
	}
	s.mu.RUnlock()

	return Stats{
		Backend:   "memory",
		Entries:   count,
		SizeBytes: size,
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}
}
