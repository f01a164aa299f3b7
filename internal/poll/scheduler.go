// Package poll runs a fetch immediately and then on a fixed interval until
// stopped, delivering results in issue order.
//
// Every invocation is numbered. A result is handed to the callbacks only if
// its number is newer than the last one delivered, so a slow response can
// never overwrite a fresher one. Once Stop returns, no callback runs again.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kimxines02/AstroNext/internal/metrics"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// FetchFunc performs one poll. ctx is cancelled on Stop or after
// Options.Timeout.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Options configures a schedule.
type Options struct {
	// Name labels metrics and logs.
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	// AllowOverlap lets a tick start a fetch while the previous one is still
	// outstanding. By default such ticks are skipped.
	AllowOverlap bool
	Logger       *slog.Logger
}

// Handle controls a running schedule.
type Handle struct {
	name   string
	logger *slog.Logger

	mu          sync.Mutex
	stopped     bool
	lastApplied uint64

	cancel  context.CancelFunc
	done    chan struct{}
	fetches sync.WaitGroup

	seq       atomic.Uint64
	inFlight  atomic.Int32
	skipped   atomic.Int64
	discarded atomic.Int64
}

// Start begins polling. fetch is invoked immediately and then every
// Interval. onUpdate and onError receive the invocation's sequence number
// and run one at a time; they must not call Stop on their own handle.
func Start[T any](ctx context.Context, fetch FetchFunc[T], opts Options, onUpdate func(seq uint64, v T), onError func(seq uint64, err error)) *Handle {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		name:   opts.Name,
		logger: opts.Logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	fire := func() {
		if opts.AllowOverlap {
			h.inFlight.Add(1)
		} else if !h.inFlight.CompareAndSwap(0, 1) {
			h.skipped.Add(1)
			metrics.IncPollSkipped(h.name)
			h.logger.Debug("poll tick skipped, fetch still in flight", "view", h.name)
			return
		}
		seq := h.seq.Add(1)

		h.fetches.Add(1)
		go func() {
			defer h.fetches.Done()
			defer h.inFlight.Add(-1)

			fctx, fcancel := context.WithTimeout(ctx, opts.Timeout)
			v, err := fetch(fctx)
			fcancel()

			h.deliver(seq, func() {
				if err != nil {
					if onError != nil {
						onError(seq, err)
					}
					return
				}
				if onUpdate != nil {
					onUpdate(seq, v)
				}
			})
		}()
	}

	go h.run(ctx, opts.Interval, fire)
	return h
}

func (h *Handle) run(ctx context.Context, interval time.Duration, fire func()) {
	defer close(h.done)

	fire()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Parent cancellation counts as a stop so late results are dropped.
			h.Stop()
			return
		case <-ticker.C:
			fire()
		}
	}
}

// deliver applies a completed fetch unless the handle is stopped or a newer
// invocation has already been delivered.
func (h *Handle) deliver(seq uint64, apply func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		h.discarded.Add(1)
		metrics.IncPollDiscarded(h.name, "stopped")
		return
	}
	if seq <= h.lastApplied {
		h.discarded.Add(1)
		metrics.IncPollDiscarded(h.name, "stale")
		h.logger.Debug("stale poll response discarded", "view", h.name, "seq", seq, "last_applied", h.lastApplied)
		return
	}
	h.lastApplied = seq
	apply()
}

// Stop cancels the schedule and any in-flight fetch. It is idempotent.
// After Stop returns no callback is running or will run.
func (h *Handle) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	h.cancel()
}

// Done is closed once the ticker loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the loop and every started fetch have returned.
func (h *Handle) Wait() {
	<-h.done
	h.fetches.Wait()
}

// Stopped reports whether Stop has been called.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Issued returns the number of fetches started so far.
func (h *Handle) Issued() uint64 { return h.seq.Load() }

// Skipped returns the number of ticks dropped because a fetch was in flight.
func (h *Handle) Skipped() int64 { return h.skipped.Load() }

// Discarded returns the number of results dropped as stale or after Stop.
func (h *Handle) Discarded() int64 { return h.discarded.Load() }
