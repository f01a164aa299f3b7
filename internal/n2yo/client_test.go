package n2yo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "SECRET-KEY-123"

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, APIKey: testKey, Timeout: timeout}, testLogger)
	require.NoError(t, err)
	return c
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{BaseURL: "https://api.n2yo.com/rest/v1/satellite/"}.Validate())
	assert.Error(t, Config{APIKey: "k"}.Validate())
	assert.Error(t, Config{APIKey: "k", BaseURL: "api.n2yo.com"}.Validate())
	assert.NoError(t, Config{APIKey: "k", BaseURL: "https://api.n2yo.com/rest/v1/satellite/"}.Validate())
}

func TestClientURL(t *testing.T) {
	c := newTestClient(t, "https://api.n2yo.com/rest/v1/satellite", 0)
	got := c.URL(VisualPassesRequest(25544, 14.5995, 120.9842, 0, 1, 90))
	assert.Equal(t,
		"https://api.n2yo.com/rest/v1/satellite/visualpasses/25544/14.5995/120.9842/0/1/90/?apiKey="+testKey,
		got)
}

func TestClientFetchSuccess(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("apiKey")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"info":{"satname":"SPACE STATION"},"positions":[{"satlatitude":1,"satlongitude":2}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/rest/v1/satellite/", time.Second)
	body, err := c.Fetch(context.Background(), PositionsRequest(25544))
	require.NoError(t, err)
	assert.Contains(t, string(body), "SPACE STATION")
	assert.Equal(t, "/rest/v1/satellite/positions/25544/0/0/0/30", gotPath)
	assert.Equal(t, testKey, gotKey)
}

func TestClientFetchStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, time.Second)
	_, err := c.Fetch(context.Background(), PositionsRequest(25544))

	var serr *UpstreamStatusError
	require.True(t, errors.As(err, &serr), "got %v", err)
	assert.Equal(t, http.StatusInternalServerError, serr.StatusCode)
	assert.NotContains(t, err.Error(), testKey)
}

func TestClientFetchNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, time.Second)
	_, err := c.Fetch(context.Background(), PositionsRequest(25544))

	var serr *UpstreamStatusError
	assert.True(t, errors.As(err, &serr), "got %v", err)
}

// TestClientTransportErrorRedactsKey verifies that a connection failure does
// not surface the request URL, which carries the API key.
func TestClientTransportErrorRedactsKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	c := newTestClient(t, base, time.Second)
	_, err := c.Fetch(context.Background(), PositionsRequest(25544))
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr), "got %v", err)
	assert.False(t, terr.Timeout)
	assert.NotContains(t, err.Error(), testKey)
	assert.NotContains(t, err.Error(), "apiKey")
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(t, server.URL, 50*time.Millisecond)
	_, err := c.Fetch(context.Background(), PositionsRequest(25544))

	var terr *TransportError
	require.True(t, errors.As(err, &terr), "got %v", err)
	assert.True(t, terr.Timeout)
	assert.NotContains(t, err.Error(), testKey)
}

func TestClientBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := strings.Repeat("A", 1024*1024)
		for i := 0; i < 6; i++ {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 5*time.Second)
	_, err := c.Fetch(context.Background(), PositionsRequest(25544))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestClientRejectsInvalidRequest(t *testing.T) {
	c := newTestClient(t, "https://api.n2yo.com/rest/v1/satellite/", time.Second)
	_, err := c.Fetch(context.Background(), PositionsRequest(0))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestProxyClientFetch(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/satellite" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"above":[]}`))
	}))
	defer server.Close()

	p, err := NewProxyClient(server.URL, time.Second, testLogger)
	require.NoError(t, err)

	body, err := p.Fetch(context.Background(), AboveRequest(14.5995, 120.9842, 0, 90))
	require.NoError(t, err)
	assert.JSONEq(t, `{"above":[]}`, string(body))
	assert.Contains(t, gotQuery, "type=above")
	assert.Contains(t, gotQuery, "searchRadius=90")
}

func TestProxyClientStatusMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGatewayTimeout)
		w.Write([]byte(`{"error":"Upstream request timed out."}`))
	}))
	defer server.Close()

	p, err := NewProxyClient(server.URL, time.Second, testLogger)
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), PositionsRequest(25544))
	var serr *UpstreamStatusError
	require.True(t, errors.As(err, &serr), "got %v", err)
	assert.Equal(t, http.StatusGatewayTimeout, serr.StatusCode)
	assert.Equal(t, "Upstream request timed out.", serr.Message)
}

func TestNewProxyClientRejectsRelativeURL(t *testing.T) {
	_, err := NewProxyClient("localhost:8080", time.Second, testLogger)
	assert.Error(t, err)
}
