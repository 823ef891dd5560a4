// Package middleware provides HTTP middleware for the assignment API.
package middleware

import (
	"net/http"
	"strconv"
	"time"
)

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type, X-Session-ID"
	preflightAge = 10 * time.Minute
)

// CORS returns middleware that answers cross-origin requests from the
// configured origins. "*" allows any origin but never with credentials.
// Preflights are answered here and do not reach next.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	explicit := make(map[string]bool, len(allowedOrigins))
	wildcard := false
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		explicit[o] = true
	}
	maxAge := strconv.Itoa(int(preflightAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")

			allowed := origin != "" && (wildcard || explicit[origin])
			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", allowMethods)
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				if explicit[origin] {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if origin != "" && !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
