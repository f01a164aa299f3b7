// Package api wires the HTTP routes: the N2YO proxy endpoint, the dashboard
// JSON and SSE endpoints, probes, metrics and the embedded frontend.
package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kimxines02/AstroNext/internal/auth"
	"github.com/kimxines02/AstroNext/internal/cache"
	"github.com/kimxines02/AstroNext/internal/dashboard"
	"github.com/kimxines02/AstroNext/internal/health"
	"github.com/kimxines02/AstroNext/internal/httputil"
	"github.com/kimxines02/AstroNext/internal/metrics"
	"github.com/kimxines02/AstroNext/internal/n2yo"
	"github.com/kimxines02/AstroNext/internal/proxy"
)

// SatelliteProxy answers proxy requests, reporting cache hits.
type SatelliteProxy interface {
	Do(ctx context.Context, req n2yo.Request) (proxy.Result, error)
	Stats(ctx context.Context) cache.Stats
}

// Dashboard is the dashboard surface the handlers use.
type Dashboard interface {
	Snapshot() dashboard.Snapshot
	Params() dashboard.Params
	SetParams(p dashboard.Params) ([]string, error)
}

// Deps are the components served by the API. Dashboard, Stream and Web
// are optional; their routes are omitted when nil.
type Deps struct {
	Proxy      SatelliteProxy
	Dashboard  Dashboard
	Stream     http.HandlerFunc
	Web        fs.FS
	Ready      []func(*http.Request) error
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Ready...))
	mux.Handle("GET /metrics", metrics.Handler())

	// No method in the pattern: the handler answers other methods with a
	// JSON 405 instead of the mux's plain-text one.
	mux.HandleFunc("/api/satellite", satelliteHandler(logger, deps.Proxy))
	mux.HandleFunc("GET /api/v1/cache/stats", cacheStatsHandler(deps.Proxy))

	if deps.Dashboard != nil {
		mux.HandleFunc("GET /api/v1/dashboard", snapshotHandler(deps.Dashboard))
		mux.HandleFunc("GET /api/v1/dashboard/params", getParamsHandler(deps.Dashboard))
		mux.HandleFunc("PUT /api/v1/dashboard/params", putParamsHandler(logger, deps.Dashboard))
	}
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/dashboard", deps.Stream)
	}
	if deps.Web != nil {
		// Methodless so it does not conflict with /api/satellite.
		mux.Handle("/", http.FileServerFS(deps.Web))
	}

	// Build middleware chain: metrics -> request ID -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = requestIDMiddleware(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			// Only the path is logged; proxy query strings are caller input.
			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
				"request_id", RequestID(r.Context()),
			)
		})
	}
}
