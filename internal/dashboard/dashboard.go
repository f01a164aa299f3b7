// Package dashboard composes the three polled views of the satellite
// dashboard: the tracked satellite's position with its traveled track and
// predicted path, the upcoming visible passes with a countdown, and the
// satellites currently above the observer.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kimxines02/AstroNext/internal/metrics"
	"github.com/kimxines02/AstroNext/internal/n2yo"
	"github.com/kimxines02/AstroNext/internal/normalize"
	"github.com/kimxines02/AstroNext/internal/poll"
	"github.com/kimxines02/AstroNext/internal/track"
)

// View names.
const (
	ViewPosition = "position"
	ViewPasses   = "passes"
	ViewAbove    = "above"
)

// ErrNotStarted is returned by operations that need a running dashboard.
var ErrNotStarted = errors.New("dashboard not started")

// Config holds the polling and display settings.
type Config struct {
	PositionInterval time.Duration
	PassesInterval   time.Duration
	AboveInterval    time.Duration
	FetchTimeout     time.Duration
	AllowOverlap     bool

	// TrackLimit keeps only the most recent points; 0 keeps all.
	TrackLimit      int
	PredictSteps    int
	PredictInterval time.Duration
}

// DefaultConfig polls positions and the above list every 5s and passes
// every minute.
func DefaultConfig() Config {
	return Config{
		PositionInterval: 5 * time.Second,
		PassesInterval:   60 * time.Second,
		AboveInterval:    5 * time.Second,
		FetchTimeout:     poll.DefaultTimeout,
		PredictSteps:     track.DefaultSteps,
		PredictInterval:  track.DefaultInterval,
	}
}

// PositionData is the payload of a ready position view.
type PositionData struct {
	Sample     track.SatelliteSample `json:"sample"`
	Prediction []track.GeoPosition   `json:"prediction"`
}

// Dashboard runs the views for a single set of Params.
type Dashboard struct {
	fetcher n2yo.Fetcher
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	// mu serializes lifecycle and parameter changes.
	mu      sync.Mutex
	params  Params
	ctx     context.Context
	started bool

	position *view[track.SatelliteSample, PositionData]
	passes   *view[[]normalize.VisibilityPass, []normalize.VisibilityPass]
	above    *view[[]normalize.AboveSatellite, []normalize.AboveSatellite]

	// trk is the accumulated ground track, guarded by position.mu.
	trk track.Track

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// New validates params and builds a stopped dashboard.
func New(fetcher n2yo.Fetcher, cfg Config, params Params, logger *slog.Logger) (*Dashboard, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if cfg.PredictSteps < 0 {
		cfg.PredictSteps = 0
	}
	if cfg.PredictInterval <= 0 {
		cfg.PredictInterval = track.DefaultInterval
	}

	d := &Dashboard{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		params:  params,
		subs:    make(map[chan struct{}]struct{}),
	}

	opts := func(interval time.Duration) poll.Options {
		return poll.Options{Interval: interval, Timeout: cfg.FetchTimeout, AllowOverlap: cfg.AllowOverlap}
	}
	d.position = newView(ViewPosition, opts(cfg.PositionInterval), d.accumulate, d.notify, d.clock, logger)
	d.passes = newView(ViewPasses, opts(cfg.PassesInterval), identity[[]normalize.VisibilityPass], d.notify, d.clock, logger)
	d.above = newView(ViewAbove, opts(cfg.AboveInterval), identity[[]normalize.AboveSatellite], d.notify, d.clock, logger)
	return d, nil
}

func identity[T any](v T) T { return v }

func (d *Dashboard) clock() time.Time { return d.now().UTC() }

// Start begins polling all views. Polling stops when ctx is cancelled or
// Stop is called.
func (d *Dashboard) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx = ctx
	d.started = true

	p := d.params
	d.restartPosition(p)
	d.restartPasses(p)
	d.restartAbove(p)

	d.logger.Info("dashboard started",
		"satellite_id", p.SatelliteID,
		"observer_lat", p.ObserverLat,
		"observer_lng", p.ObserverLng,
	)
}

// Stop cancels every view. Late responses are discarded.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return
	}
	d.started = false
	d.position.stop()
	d.passes.stop()
	d.above.stop()
	d.logger.Info("dashboard stopped")
}

// Params returns the current parameters.
func (d *Dashboard) Params() Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// Started reports whether the views are polling.
func (d *Dashboard) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// SetParams replaces the parameters and restarts only the views whose
// request changed. Changing the satellite clears the track. It returns the
// names of the restarted views.
func (d *Dashboard) SetParams(p Params) ([]string, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	changed := p.changedViews(d.params)
	d.params = p
	if !d.started {
		return changed, nil
	}

	for _, name := range changed {
		switch name {
		case ViewPosition:
			d.restartPosition(p)
		case ViewPasses:
			d.restartPasses(p)
		case ViewAbove:
			d.restartAbove(p)
		}
	}
	if len(changed) > 0 {
		d.logger.Info("dashboard params changed", "restarted", changed, "satellite_id", p.SatelliteID)
	}
	return changed, nil
}

func (d *Dashboard) restartPosition(p Params) {
	req := p.positionsRequest()
	d.position.restart(d.ctx, func(ctx context.Context) (track.SatelliteSample, error) {
		raw, err := d.fetcher.Fetch(ctx, req)
		if err != nil {
			return track.SatelliteSample{}, err
		}
		return normalize.Positions(raw, d.clock())
	}, func() {
		d.trk = nil
		metrics.SetTrackPoints(0)
	})
}

func (d *Dashboard) restartPasses(p Params) {
	req := p.passesRequest()
	d.passes.restart(d.ctx, func(ctx context.Context) ([]normalize.VisibilityPass, error) {
		raw, err := d.fetcher.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		return normalize.VisualPasses(raw)
	}, nil)
}

func (d *Dashboard) restartAbove(p Params) {
	req := p.aboveRequest()
	d.above.restart(d.ctx, func(ctx context.Context) ([]normalize.AboveSatellite, error) {
		raw, err := d.fetcher.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		return normalize.Above(raw)
	}, nil)
}

// accumulate extends the track with a new sample and predicts ahead of it.
// It runs under the position view's lock.
func (d *Dashboard) accumulate(s track.SatelliteSample) PositionData {
	d.trk = track.Append(d.trk, s.Position)
	if d.cfg.TrackLimit > 0 {
		d.trk = track.Tail(d.trk, d.cfg.TrackLimit)
	}
	metrics.SetTrackPoints(len(d.trk))

	return PositionData{
		Sample:     s,
		Prediction: track.Predict(s, d.cfg.PredictSteps, d.cfg.PredictInterval),
	}
}

// Subscribe returns a channel that receives a signal after state changes.
// Signals coalesce: a slow reader sees one pending signal, never a backlog.
// The returned func unsubscribes.
func (d *Dashboard) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	d.subMu.Lock()
	d.subs[ch] = struct{}{}
	d.subMu.Unlock()

	return ch, func() {
		d.subMu.Lock()
		delete(d.subs, ch)
		d.subMu.Unlock()
	}
}

func (d *Dashboard) notify() {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for ch := range d.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
