package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kimxines02/AstroNext/internal/dashboard"
	"github.com/kimxines02/AstroNext/internal/httputil"
)

const maxParamsBody = 4 << 10

// snapshotHandler serves GET /api/v1/dashboard.
func snapshotHandler(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, d.Snapshot())
	}
}

func getParamsHandler(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, d.Params())
	}
}

type paramsResponse struct {
	Params    dashboard.Params `json:"params"`
	Restarted []string         `json:"restarted"`
}

// putParamsHandler serves PUT /api/v1/dashboard/params. Fields absent from
// the body keep their current values.
func putParamsHandler(logger *slog.Logger, d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := d.Params()

		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxParamsBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		restarted, err := d.SetParams(p)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		logger.Info("dashboard params updated",
			"component", "api",
			"restarted", restarted,
			"request_id", RequestID(r.Context()),
		)
		if restarted == nil {
			restarted = []string{}
		}
		httputil.WriteJSON(w, http.StatusOK, paramsResponse{Params: p, Restarted: restarted})
	}
}
