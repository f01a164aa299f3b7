// Package auth guards the state-changing dashboard endpoints with a static
// bearer token. Read-only endpoints and the proxy stay public.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kimxines02/AstroNext/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// protectedPaths require a token when auth is enabled.
var protectedPaths = map[string]bool{
	"/api/v1/dashboard/params": true,
}

// isProtected returns true if the request must carry a token. Safe methods
// are always allowed so the mux can answer them (e.g. with 405).
func isProtected(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return false
	}
	return protectedPaths[r.URL.Path]
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on protected paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || !isProtected(r) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")

			if !found || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="astronext"`)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
