package cache

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeClock is a settable time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(time.Minute, testLogger())
	s.now = clock.Now
	return s, clock
}

// TestMemoryStore tests basic operations: set, get, expiry, evict.
func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()

	if err := s.Set(ctx, "positions:positions/25544/0/0/0/30", []byte(`{"positions":[]}`), 2*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := s.Get(ctx, "positions:positions/25544/0/0/0/30")
	if err != nil || !ok {
		t.Fatalf("expected cache hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != `{"positions":[]}` {
		t.Errorf("value mismatch: %s", got)
	}

	clock.Advance(2 * time.Second)
	if _, ok, _ := s.Get(ctx, "positions:positions/25544/0/0/0/30"); ok {
		t.Error("expected miss once TTL has elapsed")
	}

	if removed := s.evictExpired(); removed != 1 {
		t.Errorf("evictExpired removed %d, want 1", removed)
	}

	stats := s.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("entries: got %d, want 0", stats.Entries)
	}
	if stats.Hits != 1 || stats.Misses != 1 || stats.Evictions != 1 {
		t.Errorf("counters: got hits=%d misses=%d evictions=%d, want 1/1/1", stats.Hits, stats.Misses, stats.Evictions)
	}
	if stats.Backend != "memory" {
		t.Errorf("backend: got %q", stats.Backend)
	}
}

func TestMemoryStoreEvictKeepsLiveEntries(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()

	s.Set(ctx, "short", []byte("a"), time.Second)
	s.Set(ctx, "long", []byte("b"), time.Minute)
	clock.Advance(5 * time.Second)

	if removed := s.evictExpired(); removed != 1 {
		t.Fatalf("evictExpired removed %d, want 1", removed)
	}
	if _, ok, _ := s.Get(ctx, "long"); !ok {
		t.Error("live entry was evicted")
	}
}

func TestMemoryStoreZeroTTLNotStored(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	s.Set(ctx, "k", []byte("v"), 0)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("zero TTL value should not be cached")
	}
}

// TestMemoryStoreCopiesValue verifies callers cannot mutate cached bytes.
func TestMemoryStoreCopiesValue(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	buf := []byte("original")
	s.Set(ctx, "k", buf, time.Minute)
	copy(buf, "mutated!")

	got, _, _ := s.Get(ctx, "k")
	if string(got) != "original" {
		t.Errorf("cached value changed to %q", got)
	}

	// Mutating a returned value must not reach the stored entry.
	copy(got, "mutated!")
	again, _, _ := s.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("cached value changed through Get result to %q", again)
	}
}

func TestMemoryStoreStartStopsOnCancel(t *testing.T) {
	s := NewMemoryStore(10*time.Millisecond, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	s.Set(ctx, "k", []byte("v"), time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if n := s.Stats(context.Background()).Entries; n != 0 {
		t.Errorf("expected sweeper to remove expired entry, %d left", n)
	}
}
