// Package stream pushes dashboard snapshots to browsers over Server-Sent
// Events. Clients connect via GET /api/v1/stream/dashboard and receive a
// snapshot immediately and again after every view change.
//
// SSE message format:
//
//	data: {"type":"snapshot","params":{...},"position":{...},"passes":{...},"above":{...}}\n\n
//
// Keep-alive comments (:\n\n) are sent after KeepaliveInterval of silence.
package stream

import (
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/kimxines02/AstroNext/internal/dashboard"
	"github.com/kimxines02/AstroNext/internal/httputil"
	"github.com/kimxines02/AstroNext/internal/metrics"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	MaxTotal           int           // Cap across all clients (default: 500).
	TrustProxy         bool          // Take client IPs from X-Forwarded-For.
}

// Source provides snapshots and change notifications.
type Source interface {
	Snapshot() dashboard.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Handler manages SSE streaming connections.
type Handler struct {
	source  Source
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(source Source, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	return &Handler{
		source:  source,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

// snapshotMessage is the only data message type.
type snapshotMessage struct {
	Type string `json:"type"`
	dashboard.Snapshot
}

func newSnapshotMessage(s dashboard.Snapshot) snapshotMessage {
	return snapshotMessage{Type: "snapshot", Snapshot: s}
}

// HandleDashboard serves the SSE snapshot stream.
// GET /api/v1/stream/dashboard
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, denied := h.limiter.acquire(ip)
	if release == nil {
		metrics.IncStreamErrors(denied)
		h.logger.Warn("stream limit exceeded",
			"remote_ip", ip,
			"limit", denied,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	defer func() {
		release()
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before the first snapshot so no change is missed between.
	changes, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(time.Duration(3000+rand.Intn(4000)) * time.Millisecond); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	if err := c.sendJSON(newSnapshotMessage(h.source.Snapshot())); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (initial snapshot)", "remote_ip", ip, "error", err)
		return
	}

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-changes:
			if err := c.sendJSON(newSnapshotMessage(h.source.Snapshot())); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
