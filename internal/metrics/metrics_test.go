package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/app.js", "/app.js"},
		{"/api/satellite", "/api/satellite"},
		{"/api/v1/dashboard", "/api/v1/dashboard"},
		{"/api/v1/dashboard/params", "/api/v1/dashboard/params"},
		{"/api/v1/stream/dashboard", "/api/v1/stream/dashboard"},
		{"/api/v1/cache/stats", "/api/v1/cache/stats"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/satellite/25544", "other"},
		{"/api/v2/dashboard", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 distinct scanner paths produce
// exactly 1 path label.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[normalizeRoute("/probe/"+strconv.Itoa(i))] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for unknown paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/satellite", http.MethodGet, "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/satellite", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/satellite", http.MethodGet, "418"))

	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues("positions", "timeout"))
	ObserveUpstream("positions", "timeout", 10*time.Second)
	after := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues("positions", "timeout"))

	if after-before != 1 {
		t.Errorf("expected upstream counter to increase by 1, got %v", after-before)
	}
}

func TestPollCounters(t *testing.T) {
	IncPollDiscarded("position", "stale")
	IncPollSkipped("passes")
	IncPollTick("above", "empty")

	if got := testutil.ToFloat64(pollDiscardedTotal.WithLabelValues("position", "stale")); got < 1 {
		t.Errorf("discarded counter = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(pollSkippedTotal.WithLabelValues("passes")); got < 1 {
		t.Errorf("skipped counter = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(pollTicksTotal.WithLabelValues("above", "empty")); got < 1 {
		t.Errorf("tick counter = %v, want >= 1", got)
	}
}
