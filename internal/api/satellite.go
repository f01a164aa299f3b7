package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kimxines02/AstroNext/internal/httputil"
	"github.com/kimxines02/AstroNext/internal/n2yo"
)

const msgInvalidParams = "Invalid request parameters."

// satelliteHandler relays one of the three N2YO queries.
// GET /api/satellite?type=positions&satelliteId=25544
func satelliteHandler(logger *slog.Logger, p SatelliteProxy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			httputil.WriteError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s Not Allowed", r.Method))
			return
		}

		req, err := n2yo.ParseQuery(r.URL.Query())
		if err != nil {
			logger.Debug("rejected proxy request", "component", "api", "error", err)
			httputil.WriteError(w, http.StatusBadRequest, msgInvalidParams)
			return
		}

		res, err := p.Do(r.Context(), req)
		if err != nil {
			if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
				return // client went away
			}
			status, msg := upstreamFailure(err)
			logger.Warn("proxy request failed",
				"component", "api",
				"kind", req.Kind,
				"status", status,
				"error", err,
				"request_id", RequestID(r.Context()),
			)
			httputil.WriteError(w, status, msg)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if res.Hit {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.WriteHeader(http.StatusOK)
		w.Write(res.Body)
	}
}

// upstreamFailure maps a fetch error to a status code and client message.
// Messages are fixed strings so nothing from the upstream URL can leak.
func upstreamFailure(err error) (int, string) {
	var (
		transErr *n2yo.TransportError
		status   *n2yo.UpstreamStatusError
	)
	switch {
	case errors.As(err, &transErr) && transErr.Timeout, errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Upstream request timed out."
	case errors.As(err, &transErr):
		return http.StatusBadGateway, "Failed to reach the N2YO API."
	case errors.As(err, &status):
		return http.StatusBadGateway, fmt.Sprintf("N2YO API responded with status %d.", status.StatusCode)
	case errors.Is(err, n2yo.ErrInvalidRequest):
		return http.StatusBadRequest, msgInvalidParams
	default:
		return http.StatusInternalServerError, "Failed to fetch data from N2YO API."
	}
}

func cacheStatsHandler(p SatelliteProxy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, p.Stats(r.Context()))
	}
}
