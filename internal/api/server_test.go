package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimxines02/AstroNext/internal/auth"
	"github.com/kimxines02/AstroNext/internal/cache"
	"github.com/kimxines02/AstroNext/internal/dashboard"
	"github.com/kimxines02/AstroNext/internal/n2yo"
	"github.com/kimxines02/AstroNext/internal/proxy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fakeProxy struct {
	mu    sync.Mutex
	calls []n2yo.Request
	res   proxy.Result
	err   error
}

func (f *fakeProxy) Do(_ context.Context, req n2yo.Request) (proxy.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.res, f.err
}

func (f *fakeProxy) Stats(context.Context) cache.Stats {
	return cache.Stats{Backend: "memory", Entries: 3, Hits: 5, Misses: 2}
}

type fakeDashboard struct {
	mu     sync.Mutex
	params dashboard.Params
}

func (f *fakeDashboard) Snapshot() dashboard.Snapshot {
	return dashboard.Snapshot{Params: f.Params(), Running: true}
}

func (f *fakeDashboard) Params() dashboard.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

func (f *fakeDashboard) SetParams(p dashboard.Params) ([]string, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var changed []string
	if p.SatelliteID != f.params.SatelliteID {
		changed = append(changed, dashboard.ViewPosition, dashboard.ViewPasses)
	}
	f.params = p
	return changed, nil
}

func newTestServer(t *testing.T, p SatelliteProxy, d Dashboard, authCfg auth.Config) *httptest.Server {
	t.Helper()
	web := fstest.MapFS{"index.html": {Data: []byte("<html>astronext</html>")}}
	s := NewServer(":0", testLogger(), authCfg, Deps{Proxy: p, Dashboard: d, Web: web})
	ts := httptest.NewServer(s.HTTPServer().Handler)
	t.Cleanup(ts.Close)
	return ts
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&e))
	return e.Error
}

func TestSatelliteRelaysUpstreamBody(t *testing.T) {
	fp := &fakeProxy{res: proxy.Result{Body: []byte(`{"info":{"satid":25544}}`), Hit: true}}
	ts := newTestServer(t, fp, nil, auth.Config{})

	resp, err := http.Get(ts.URL + "/api/satellite?type=positions&satelliteId=25544")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"info":{"satid":25544}}`, string(body))

	require.Len(t, fp.calls, 1)
	assert.Equal(t, n2yo.KindPositions, fp.calls[0].Kind)
	assert.Equal(t, 25544, fp.calls[0].SatelliteID)
}

func TestSatelliteRejectsOtherMethods(t *testing.T) {
	ts := newTestServer(t, &fakeProxy{}, nil, auth.Config{})

	resp, err := http.Post(ts.URL+"/api/satellite?type=above", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET", resp.Header.Get("Allow"))
	assert.Equal(t, "Method POST Not Allowed", decodeError(t, resp.Body))
}

func TestSatelliteInvalidParams(t *testing.T) {
	fp := &fakeProxy{}
	ts := newTestServer(t, fp, nil, auth.Config{})

	for _, q := range []string{
		"",
		"?type=bogus",
		"?type=positions",
		"?type=positions&satelliteId=abc",
		"?type=visualpasses&satelliteId=25544&observerLat=1&observerLng=2&observerAlt=0&days=30&minVisibility=10",
		"?type=visualpasses&satelliteId=25544&observerLat=1&observerLng=2&observerAlt=0&minVisibility=90",
		"?type=above&observerLat=1",
	} {
		t.Run(q, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/satellite" + q)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "Invalid request parameters.", decodeError(t, resp.Body))
		})
	}
	assert.Empty(t, fp.calls)
}

func TestSatelliteUpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"timeout", &n2yo.TransportError{Kind: n2yo.KindAbove, Timeout: true, Err: errors.New("deadline")}, http.StatusGatewayTimeout},
		{"transport", &n2yo.TransportError{Kind: n2yo.KindAbove, Err: errors.New("connection refused")}, http.StatusBadGateway},
		{"status", &n2yo.UpstreamStatusError{Kind: n2yo.KindAbove, StatusCode: 503}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeProxy{err: tt.err}, nil, auth.Config{})
			resp, err := http.Get(ts.URL + "/api/satellite?type=above&observerLat=1&observerLng=2")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, decodeError(t, resp.Body))
		})
	}
}

func TestSatelliteNeverLeaksKey(t *testing.T) {
	const key = "SECRET-KEY-123"
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key "+r.URL.Query().Get("apiKey"), http.StatusForbidden)
	}))
	defer upstream.Close()

	client, err := n2yo.NewClient(n2yo.Config{BaseURL: upstream.URL, APIKey: key}, testLogger())
	require.NoError(t, err)
	svc := proxy.NewService(client, nil, proxy.DefaultTTLs, testLogger())
	ts := newTestServer(t, svc, nil, auth.Config{})

	resp, err := http.Get(ts.URL + "/api/satellite?type=positions&satelliteId=25544")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.NotContains(t, string(body), key)
	for _, vals := range resp.Header {
		for _, v := range vals {
			assert.NotContains(t, v, key)
		}
	}
}

func TestCacheStats(t *testing.T) {
	ts := newTestServer(t, &fakeProxy{}, nil, auth.Config{})

	resp, err := http.Get(ts.URL + "/api/v1/cache/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats cache.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, 3, stats.Entries)
}

func TestDashboardSnapshotAndParams(t *testing.T) {
	fd := &fakeDashboard{params: dashboard.DefaultParams()}
	ts := newTestServer(t, &fakeProxy{}, fd, auth.Config{})

	resp, err := http.Get(ts.URL + "/api/v1/dashboard")
	require.NoError(t, err)
	var snap dashboard.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.True(t, snap.Running)
	assert.Equal(t, 25544, snap.Params.SatelliteID)

	resp, err = http.Get(ts.URL + "/api/v1/dashboard/params")
	require.NoError(t, err)
	var p dashboard.Params
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	resp.Body.Close()
	assert.Equal(t, dashboard.DefaultParams(), p)
}

func putParams(t *testing.T, url, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url+"/api/v1/dashboard/params", strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestPutParamsPartialUpdate(t *testing.T) {
	fd := &fakeDashboard{params: dashboard.DefaultParams()}
	ts := newTestServer(t, &fakeProxy{}, fd, auth.Config{})

	resp := putParams(t, ts.URL, `{"satellite_id": 20580}`, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out paramsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 20580, out.Params.SatelliteID)
	assert.Equal(t, dashboard.DefaultParams().ObserverLat, out.Params.ObserverLat)
	assert.Equal(t, []string{dashboard.ViewPosition, dashboard.ViewPasses}, out.Restarted)
}

func TestPutParamsRejectsInvalid(t *testing.T) {
	fd := &fakeDashboard{params: dashboard.DefaultParams()}
	ts := newTestServer(t, &fakeProxy{}, fd, auth.Config{})

	for _, body := range []string{`{"observer_lat": 200}`, `{"bogus": 1}`, `not json`} {
		resp := putParams(t, ts.URL, body, "")
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
	assert.Equal(t, dashboard.DefaultParams(), fd.Params())
}

func TestPutParamsRequiresToken(t *testing.T) {
	fd := &fakeDashboard{params: dashboard.DefaultParams()}
	ts := newTestServer(t, &fakeProxy{}, fd, auth.Config{Enabled: true, Token: "s3cret"})

	resp := putParams(t, ts.URL, `{"satellite_id": 20580}`, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = putParams(t, ts.URL, `{"satellite_id": 20580}`, "s3cret")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Reads stay public.
	getResp, err := http.Get(ts.URL + "/api/v1/dashboard/params")
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestRequestIDPropagation(t *testing.T) {
	ts := newTestServer(t, &fakeProxy{}, nil, auth.Config{})
	const id = "0b4c8a7e-3f0e-4a52-9d55-4f6d1d1e2a10"

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", id)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get("X-Request-ID"))

	req.Header.Set("X-Request-ID", "not-a-uuid")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get("X-Request-ID"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestStaticFrontend(t *testing.T) {
	ts := newTestServer(t, &fakeProxy{}, nil, auth.Config{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "astronext")
}

func TestProbePath(t *testing.T) {
	assert.True(t, probePath("/healthz"))
	assert.True(t, probePath("/readyz"))
	assert.False(t, probePath("/api/satellite"))
}
