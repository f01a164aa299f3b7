package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kimxines02/AstroNext/internal/metrics"
	"github.com/kimxines02/AstroNext/internal/normalize"
	"github.com/kimxines02/AstroNext/internal/poll"
)

// view owns one poll handle and the state it produces. F is what a fetch
// yields after normalization, D what the view stores.
//
// Lock order: a poll callback holds the handle's lock and then takes mu, so
// mu is never held while calling Stop on a handle.
type view[F, D any] struct {
	name      string
	opts      poll.Options
	transform func(F) D // runs under mu
	onChange  func()
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	gen    uint64
	handle *poll.Handle
	state  poll.State[D]
}

func newView[F, D any](name string, opts poll.Options, transform func(F) D, onChange func(), now func() time.Time, logger *slog.Logger) *view[F, D] {
	opts.Name = name
	opts.Logger = logger
	return &view[F, D]{
		name:      name,
		opts:      opts,
		transform: transform,
		onChange:  onChange,
		now:       now,
		logger:    logger,
		state:     poll.Loading[D](now()),
	}
}

// restart supersedes the running handle with one polling fetch. reset runs
// under mu after the generation bump, so no callback of the old handle can
// observe or undo it.
func (v *view[F, D]) restart(ctx context.Context, fetch poll.FetchFunc[F], reset func()) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	old := v.handle
	v.handle = nil
	v.state = poll.Loading[D](v.now())
	if reset != nil {
		reset()
	}
	v.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	v.onChange()

	h := poll.Start(ctx, fetch, v.opts,
		func(seq uint64, f F) { v.applyUpdate(gen, seq, f) },
		func(seq uint64, err error) { v.applyError(gen, seq, err) },
	)

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		h.Stop()
		return
	}
	v.handle = h
	v.mu.Unlock()
}

// stop cancels polling and moves the view to the terminal Cancelled state.
func (v *view[F, D]) stop() {
	v.mu.Lock()
	v.gen++
	old := v.handle
	v.handle = nil
	v.state = poll.Cancelled(v.state, v.now())
	v.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	v.onChange()
}

func (v *view[F, D]) applyUpdate(gen, seq uint64, f F) {
	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		metrics.IncPollDiscarded(v.name, "superseded")
		return
	}
	v.state = poll.Ready(v.transform(f), seq, v.now())
	v.mu.Unlock()

	metrics.IncPollTick(v.name, string(poll.StatusReady))
	v.onChange()
}

func (v *view[F, D]) applyError(gen, seq uint64, err error) {
	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		metrics.IncPollDiscarded(v.name, "superseded")
		return
	}
	var next poll.State[D]
	if errors.Is(err, normalize.ErrEmptyResult) {
		next = poll.Empty[D](seq, v.now())
	} else {
		next = poll.Failed[D](reason(err), seq, v.now())
	}
	v.state = next
	v.mu.Unlock()

	if next.Status == poll.StatusFailed {
		v.logger.Warn("view update failed", "view", v.name, "seq", seq, "error", err)
	}
	metrics.IncPollTick(v.name, string(next.Status))
	v.onChange()
}

// read calls fn with the current state under mu.
func (v *view[F, D]) read(fn func(poll.State[D])) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(v.state)
}
