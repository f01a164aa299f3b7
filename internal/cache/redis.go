package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "astronext:resp:"

// RedisStore is a Store backed by Redis. TTLs are enforced by Redis itself.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisStore connects to addr and verifies the connection with PING.
func NewRedisStore(ctx context.Context, addr string, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to Redis at %s: %w", addr, err)
	}

	logger.Info("redis cache connected", "addr", addr)
	return &RedisStore{client: client, logger: logger}, nil
}

// Get returns the cached value for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		s.misses.Add(1)
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	s.hits.Add(1)
	return val, true, nil
}

// Set stores value with a Redis-side expiry of ttl.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Stats counts this process's lookups. Entries is the number of keys under
// the cache prefix; expiry is handled by Redis so evictions are not tracked.
func (s *RedisStore) Stats(ctx context.Context) Stats {
	var entries int
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		entries++
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("redis scan failed", "error", err)
	}

	return Stats{
		Backend: "redis",
		Entries: entries,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}

// Ping reports whether Redis is reachable, for readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
