package dashboard

import (
	"errors"
	"time"

	"github.com/kimxines02/AstroNext/internal/countdown"
	"github.com/kimxines02/AstroNext/internal/normalize"
	"github.com/kimxines02/AstroNext/internal/poll"
	"github.com/kimxines02/AstroNext/internal/track"
)

// Snapshot is a consistent-per-view copy of the dashboard.
type Snapshot struct {
	Params      Params                                  `json:"params"`
	Running     bool                                    `json:"running"`
	Position    PositionSnapshot                        `json:"position"`
	Passes      PassesSnapshot                          `json:"passes"`
	Above       poll.State[[]normalize.AboveSatellite] `json:"above"`
	GeneratedAt time.Time                               `json:"generated_at"`
}

// PositionSnapshot adds the accumulated track, which survives failed ticks.
type PositionSnapshot struct {
	poll.State[PositionData]
	Track track.Track `json:"track"`
}

// PassesSnapshot adds the countdown to the next pass, computed at snapshot
// time.
type PassesSnapshot struct {
	poll.State[[]normalize.VisibilityPass]
	Next *NextPass `json:"next,omitempty"`
}

// NextPass describes the first pass that has not yet ended, or the last
// pass with Past set when all of them have.
type NextPass struct {
	Pass       normalize.VisibilityPass `json:"pass"`
	InProgress bool                     `json:"in_progress"`
	Past       bool                     `json:"past,omitempty"`
	Countdown  string                   `json:"countdown,omitempty"`
	Relative   string                   `json:"relative,omitempty"`
	SecondsTo  int64                    `json:"seconds_to_start"`
	Duration   string                   `json:"duration"`
}

// Snapshot copies the current state of every view.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	params, running := d.params, d.started
	d.mu.Unlock()

	now := d.clock()
	snap := Snapshot{Params: params, Running: running, GeneratedAt: now}

	d.position.read(func(s poll.State[PositionData]) {
		snap.Position = PositionSnapshot{State: s, Track: d.trk}
	})
	d.passes.read(func(s poll.State[[]normalize.VisibilityPass]) {
		snap.Passes = PassesSnapshot{State: s}
		if s.Status == poll.StatusReady {
			snap.Passes.Next = nextPass(s.Data, now)
		}
	})
	d.above.read(func(s poll.State[[]normalize.AboveSatellite]) {
		snap.Above = s
	})
	return snap
}

func nextPass(passes []normalize.VisibilityPass, now time.Time) *NextPass {
	for _, p := range passes {
		if !p.EndTime.After(now) {
			continue
		}
		next := &NextPass{
			Pass:     p,
			Duration: countdown.FormatDuration(p.DurationSeconds),
		}
		c, err := countdown.Until(p.StartTime, now)
		switch {
		case errors.Is(err, countdown.ErrPastEvent):
			next.InProgress = true
		case err == nil:
			next.Countdown = c.String()
			next.Relative = countdown.Relative(p.StartTime, now)
			next.SecondsTo = int64(c.Duration() / time.Second)
		}
		return next
	}
	if len(passes) == 0 {
		return nil
	}
	// Every listed pass has ended; report the last one as past.
	last := passes[len(passes)-1]
	return &NextPass{
		Pass:     last,
		Past:     true,
		Duration: countdown.FormatDuration(last.DurationSeconds),
	}
}
