package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astronext_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "astronext_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astronext_upstream_requests_total",
			Help: "Upstream N2YO requests by query kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	upstreamDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "astronext_upstream_duration_seconds",
			Help:    "Upstream N2YO request duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astronext_cache_lookups_total",
			Help: "Response cache lookups by query kind and result (hit, miss).",
		},
		[]string{"kind", "result"},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "astronext_cache_evictions_total",
			Help: "Expired response cache entries removed by the sweeper.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "astronext_cache_entries",
			Help: "Entries currently held by the in-memory response cache.",
		},
	)

	pollTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astronext_poll_ticks_total",
			Help: "Completed poll fetches by view and result (ready, empty, failed).",
		},
		[]string{"view", "result"},
	)

	pollDiscardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astronext_poll_discarded_total",
			Help: "Poll responses dropped by view and reason (stale, stopped).",
		},
		[]string{"view", "reason"},
	)

	pollSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astronext_poll_skipped_total",
			Help: "Ticks skipped because a fetch was still in flight.",
		},
		[]string{"view"},
	)

	trackPoints = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "astronext_track_points",
			Help: "Points in the accumulated ground track.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astronext_stream_connections_total",
			Help: "SSE connection events (connect, disconnect).",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "astronext_streams_active",
			Help: "Currently open SSE streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "astronext_stream_messages_total",
			Help: "SSE data messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "astronext_stream_bytes_total",
			Help: "Bytes written to SSE streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astronext_stream_errors_total",
			Help: "SSE errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		upstreamRequestsTotal,
		upstreamDurationSeconds,
		cacheLookupsTotal,
		cacheEvictionsTotal,
		cacheEntries,
		pollTicksTotal,
		pollDiscardedTotal,
		pollSkippedTotal,
		trackPoints,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstream records one upstream call. outcome is ok, status, timeout
// or transport.
func ObserveUpstream(kind, outcome string, d time.Duration) {
	upstreamRequestsTotal.WithLabelValues(kind, outcome).Inc()
	upstreamDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

func IncCacheHit(kind string)  { cacheLookupsTotal.WithLabelValues(kind, "hit").Inc() }
func IncCacheMiss(kind string) { cacheLookupsTotal.WithLabelValues(kind, "miss").Inc() }

func AddCacheEvictions(n int) { cacheEvictionsTotal.Add(float64(n)) }
func SetCacheEntries(n int)   { cacheEntries.Set(float64(n)) }

// IncPollTick counts a fetch whose result was applied to a view.
func IncPollTick(view, result string) { pollTicksTotal.WithLabelValues(view, result).Inc() }

func IncPollDiscarded(view, reason string) { pollDiscardedTotal.WithLabelValues(view, reason).Inc() }
func IncPollSkipped(view string)           { pollSkippedTotal.WithLabelValues(view).Inc() }

func SetTrackPoints(n int) { trackPoints.Set(float64(n)) }

func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }
func IncStreamsActive()                 { streamsActive.Inc() }
func DecStreamsActive()                 { streamsActive.Dec() }
func IncStreamMessages()                { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64)            { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string)     { streamErrorsTotal.WithLabelValues(reason).Inc() }

// knownRoutes are recorded under their own path label; anything else is
// "other" so scanners cannot inflate label cardinality.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/app.js":                  true,
	"/styles.css":              true,
	"/api/satellite":           true,
	"/api/v1/dashboard":        true,
	"/api/v1/dashboard/params": true,
	"/api/v1/stream/dashboard": true,
	"/api/v1/cache/stats":      true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer so SSE
// handlers can flush and adjust deadlines.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
