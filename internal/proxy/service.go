// Package proxy fronts the upstream client with a response cache and
// request coalescing. It serves both the public /api/satellite endpoint and
// the in-process dashboard.
package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/kimxines02/AstroNext/internal/cache"
	"github.com/kimxines02/AstroNext/internal/metrics"
	"github.com/kimxines02/AstroNext/internal/n2yo"
	"github.com/kimxines02/AstroNext/internal/tracing"
)

// TTLs sets how long each kind of response is served from cache. Zero
// disables caching for that kind.
type TTLs struct {
	Positions    time.Duration
	Above        time.Duration
	VisualPasses time.Duration
}

// DefaultTTLs keep cached data younger than one poll interval of the view
// that consumes it.
var DefaultTTLs = TTLs{
	Positions:    2 * time.Second,
	Above:        5 * time.Second,
	VisualPasses: 60 * time.Second,
}

func (t TTLs) forKind(k n2yo.Kind) time.Duration {
	switch k {
	case n2yo.KindPositions:
		return t.Positions
	case n2yo.KindAbove:
		return t.Above
	case n2yo.KindVisualPasses:
		return t.VisualPasses
	default:
		return 0
	}
}

// Result is a fetched body and whether it came from cache.
type Result struct {
	Body json.RawMessage
	Hit  bool
}

// Service implements n2yo.Fetcher on top of another Fetcher.
type Service struct {
	upstream n2yo.Fetcher
	store    cache.Store
	ttls     TTLs
	group    singleflight.Group
	logger   *slog.Logger
}

// NewService wraps upstream. store may be nil to disable caching.
func NewService(upstream n2yo.Fetcher, store cache.Store, ttls TTLs, logger *slog.Logger) *Service {
	return &Service{
		upstream: upstream,
		store:    store,
		ttls:     ttls,
		logger:   logger,
	}
}

// Fetch returns the body for req.
func (s *Service) Fetch(ctx context.Context, req n2yo.Request) (json.RawMessage, error) {
	res, err := s.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Do returns the body for req, consulting the cache first. Concurrent
// misses for the same key share one upstream call. A caller whose ctx ends
// stops waiting, but the shared call runs to completion for the others.
func (s *Service) Do(ctx context.Context, req n2yo.Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	ctx, span := tracing.Tracer().Start(ctx, "proxy.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("n2yo.kind", string(req.Kind)))

	key := req.Key()
	kind := string(req.Kind)

	if body, ok := s.lookup(ctx, key); ok {
		metrics.IncCacheHit(kind)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return Result{Body: body, Hit: true}, nil
	}
	metrics.IncCacheMiss(kind)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		body, err := s.upstream.Fetch(fetchCtx, req)
		if err != nil {
			return nil, err
		}
		if !reportsError(body) {
			s.save(fetchCtx, key, body, s.ttls.forKind(req.Kind))
		}
		return body, nil
	})

	select {
	case <-ctx.Done():
		span.SetStatus(codes.Error, "caller cancelled")
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Shared {
			span.SetAttributes(attribute.Bool("singleflight.shared", true))
		}
		if r.Err != nil {
			span.RecordError(r.Err)
			span.SetStatus(codes.Error, "upstream fetch failed")
			return Result{}, r.Err
		}
		return Result{Body: r.Val.(json.RawMessage)}, nil
	}
}

// Stats reports cache statistics, or a zero value when caching is off.
func (s *Service) Stats(ctx context.Context) cache.Stats {
	if s.store == nil {
		return cache.Stats{Backend: "none"}
	}
	return s.store.Stats(ctx)
}

func (s *Service) lookup(ctx context.Context, key string) (json.RawMessage, bool) {
	if s.store == nil {
		return nil, false
	}
	body, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache lookup failed", "component", "proxy", "key", key, "error", err)
		return nil, false
	}
	return body, ok
}

func (s *Service) save(ctx context.Context, key string, body []byte, ttl time.Duration) {
	if s.store == nil || ttl <= 0 {
		return
	}
	if err := s.store.Set(ctx, key, body, ttl); err != nil {
		s.logger.Warn("cache store failed", "component", "proxy", "key", key, "error", err)
	}
}

// reportsError reports whether body is an N2YO error envelope such as an
// invalid key or exhausted quota. Those answers are relayed but not cached.
func reportsError(body []byte) bool {
	var env struct {
		Error string `json:"error"`
	}
	return json.Unmarshal(body, &env) == nil && env.Error != ""
}
