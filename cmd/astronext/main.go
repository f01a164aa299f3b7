package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kimxines02/AstroNext/internal/api"
	"github.com/kimxines02/AstroNext/internal/auth"
	"github.com/kimxines02/AstroNext/internal/cache"
	"github.com/kimxines02/AstroNext/internal/dashboard"
	"github.com/kimxines02/AstroNext/internal/n2yo"
	"github.com/kimxines02/AstroNext/internal/proxy"
	"github.com/kimxines02/AstroNext/internal/stream"
	"github.com/kimxines02/AstroNext/internal/tracing"
	"github.com/kimxines02/AstroNext/web"
)

func main() {
	level := loadLogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	addr := os.Getenv("ASTRONEXT_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	upstreamCfg, err := loadUpstreamConfig(logger)
	if err != nil {
		logger.Error("invalid upstream configuration", "error", err)
		os.Exit(1)
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.ConfigFromEnv(), logger)
	if err != nil {
		logger.Error("tracing init failed", "error", err)
		os.Exit(1)
	}

	client, err := n2yo.NewClient(upstreamCfg, logger)
	if err != nil {
		logger.Error("invalid upstream configuration", "error", err)
		os.Exit(1)
	}

	var ready []func(*http.Request) error

	store, closeStore, err := openStore(ctx, loadCacheConfig(logger), logger, &ready)
	if err != nil {
		logger.Error("cache backend unavailable", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	svc := proxy.NewService(client, store, loadTTLs(logger), logger)

	// The dashboard polls through the in-process proxy unless pointed at a
	// remote one.
	var fetcher n2yo.Fetcher = svc
	if proxyURL := os.Getenv("ASTRONEXT_PROXY_URL"); proxyURL != "" {
		remote, err := n2yo.NewProxyClient(proxyURL, upstreamCfg.Timeout, logger)
		if err != nil {
			logger.Error("invalid ASTRONEXT_PROXY_URL", "error", err)
			os.Exit(1)
		}
		fetcher = remote
		logger.Info("dashboard polling remote proxy", "proxy_url", proxyURL)
	}

	dash, err := dashboard.New(fetcher, loadDashboardConfig(logger), loadParams(logger), logger)
	if err != nil {
		logger.Error("invalid dashboard configuration", "error", err)
		os.Exit(1)
	}
	ready = append(ready, func(*http.Request) error {
		if !dash.Started() {
			return dashboard.ErrNotStarted
		}
		return nil
	})

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(dash, streamCfg, logger)

	srv := api.NewServer(addr, logger, authCfg, api.Deps{
		Proxy:      svc,
		Dashboard:  dash,
		Stream:     streamHandler.HandleDashboard,
		Web:        web.Content,
		Ready:      ready,
		TrustProxy: streamCfg.TrustProxy,
	})

	dash.Start(ctx)

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "log_level", level.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	dash.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	tracing.Shutdown(shutdownCtx, shutdownTracing, logger)

	logger.Info("server stopped")
}

// openStore builds the configured response cache. A nil Store disables
// caching. Redis adds a readiness check.
func openStore(ctx context.Context, cfg cacheConfig, logger *slog.Logger, ready *[]func(*http.Request) error) (cache.Store, func(), error) {
	switch cfg.Backend {
	case "none":
		return nil, func() {}, nil
	case "redis":
		rs, err := cache.NewRedisStore(ctx, cfg.RedisAddr, logger)
		if err != nil {
			return nil, nil, err
		}
		*ready = append(*ready, func(r *http.Request) error {
			return rs.Ping(r.Context())
		})
		return rs, func() {
			if err := rs.Close(); err != nil {
				logger.Warn("redis close failed", "error", err)
			}
		}, nil
	default:
		ms := cache.NewMemoryStore(cfg.SweepInterval, logger)
		go ms.Start(ctx)
		return ms, func() {}, nil
	}
}

func loadLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("ASTRONEXT_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func loadUpstreamConfig(logger *slog.Logger) (n2yo.Config, error) {
	cfg := n2yo.Config{
		BaseURL: os.Getenv("N2YO_API_BASE_URL"),
		APIKey:  os.Getenv("N2YO_API_KEY"),
		Timeout: envSeconds(logger, "ASTRONEXT_UPSTREAM_TIMEOUT", 10*time.Second),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	// Never log the key itself.
	logger.Info("upstream config",
		"base_url", cfg.BaseURL,
		"api_key_set", cfg.APIKey != "",
		"timeout_seconds", cfg.Timeout.Seconds(),
	)
	return cfg, nil
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("ASTRONEXT_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("ASTRONEXT_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("ASTRONEXT_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("ASTRONEXT_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

type cacheConfig struct {
	Backend       string // memory | redis | none
	RedisAddr     string
	SweepInterval time.Duration
}

func loadCacheConfig(logger *slog.Logger) cacheConfig {
	cfg := cacheConfig{
		Backend:       "memory",
		RedisAddr:     "localhost:6379",
		SweepInterval: envSeconds(logger, "ASTRONEXT_CACHE_SWEEP_INTERVAL", 30*time.Second),
	}

	if v := strings.ToLower(os.Getenv("ASTRONEXT_CACHE_BACKEND")); v != "" {
		switch v {
		case "memory", "redis", "none":
			cfg.Backend = v
		default:
			logger.Warn("invalid ASTRONEXT_CACHE_BACKEND value, using default", "value", v, "default", cfg.Backend)
		}
	}

	if v := os.Getenv("ASTRONEXT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}

	logger.Info("cache config",
		"backend", cfg.Backend,
		"redis_addr", cfg.RedisAddr,
		"sweep_interval_seconds", cfg.SweepInterval.Seconds(),
	)

	return cfg
}

func loadTTLs(logger *slog.Logger) proxy.TTLs {
	def := proxy.DefaultTTLs
	ttls := proxy.TTLs{
		Positions:    envSeconds(logger, "ASTRONEXT_CACHE_POSITIONS_TTL", def.Positions),
		Above:        envSeconds(logger, "ASTRONEXT_CACHE_ABOVE_TTL", def.Above),
		VisualPasses: envSeconds(logger, "ASTRONEXT_CACHE_PASSES_TTL", def.VisualPasses),
	}

	logger.Info("cache TTLs",
		"positions_seconds", ttls.Positions.Seconds(),
		"above_seconds", ttls.Above.Seconds(),
		"visualpasses_seconds", ttls.VisualPasses.Seconds(),
	)

	return ttls
}

func loadParams(logger *slog.Logger) dashboard.Params {
	def := dashboard.DefaultParams()
	p := dashboard.Params{
		SatelliteID:   envInt(logger, "ASTRONEXT_SATELLITE_ID", def.SatelliteID, 1),
		ObserverLat:   envFloat(logger, "ASTRONEXT_OBSERVER_LAT", def.ObserverLat),
		ObserverLng:   envFloat(logger, "ASTRONEXT_OBSERVER_LNG", def.ObserverLng),
		ObserverAlt:   envFloat(logger, "ASTRONEXT_OBSERVER_ALT", def.ObserverAlt),
		PassDays:      envInt(logger, "ASTRONEXT_PASS_DAYS", def.PassDays, 1),
		MinVisibility: envInt(logger, "ASTRONEXT_MIN_VISIBILITY", def.MinVisibility, 0),
		SearchRadius:  envInt(logger, "ASTRONEXT_SEARCH_RADIUS", def.SearchRadius, 1),
	}

	if err := p.Validate(); err != nil {
		logger.Warn("invalid dashboard params, using defaults", "error", err)
		p = def
	}

	logger.Info("dashboard params",
		"satellite_id", p.SatelliteID,
		"observer_lat", p.ObserverLat,
		"observer_lng", p.ObserverLng,
		"observer_alt", p.ObserverAlt,
		"pass_days", p.PassDays,
		"min_visibility", p.MinVisibility,
		"search_radius", p.SearchRadius,
	)

	return p
}

func loadDashboardConfig(logger *slog.Logger) dashboard.Config {
	cfg := dashboard.DefaultConfig()
	cfg.PositionInterval = envSeconds(logger, "ASTRONEXT_POSITION_INTERVAL", cfg.PositionInterval)
	cfg.AboveInterval = envSeconds(logger, "ASTRONEXT_ABOVE_INTERVAL", cfg.AboveInterval)
	cfg.PassesInterval = envSeconds(logger, "ASTRONEXT_PASSES_INTERVAL", cfg.PassesInterval)
	cfg.FetchTimeout = envSeconds(logger, "ASTRONEXT_FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.TrackLimit = envInt(logger, "ASTRONEXT_TRACK_LIMIT", cfg.TrackLimit, 0)

	logger.Info("dashboard config",
		"position_interval_seconds", cfg.PositionInterval.Seconds(),
		"above_interval_seconds", cfg.AboveInterval.Seconds(),
		"passes_interval_seconds", cfg.PassesInterval.Seconds(),
		"fetch_timeout_seconds", cfg.FetchTimeout.Seconds(),
		"track_limit", cfg.TrackLimit,
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: envInt(logger, "ASTRONEXT_STREAM_MAX_CONCURRENT", 10, 1),
		MaxTotal:           envInt(logger, "ASTRONEXT_STREAM_MAX_TOTAL", 500, 1),
		KeepaliveInterval:  envSeconds(logger, "ASTRONEXT_STREAM_KEEPALIVE_INTERVAL", 30*time.Second),
	}

	if v := os.Getenv("ASTRONEXT_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid ASTRONEXT_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}
