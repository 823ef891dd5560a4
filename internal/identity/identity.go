// Package identity resolves the conversation session and client key of a request.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
)

// SessionHeaderName carries the conversation session ID when the body does not.
const SessionHeaderName = "X-Session-ID"

type contextKey int

const (
	sessionIDKey contextKey = iota
	clientKey
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// SessionIDFromContext extracts the requested session ID, or "" when the
// request named none.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// ClientFromContext returns the key used to rate limit the caller.
func ClientFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientKey).(string); ok {
		return v
	}
	return ""
}

// SanitizeSessionID trims id and returns "" if it is not a plausible token.
func SanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return ""
	}
	return id
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return SanitizeSessionID(sid)
}

// Middleware injects the per-request session ID and client key. It never
// rejects a request: an unknown or missing session simply starts a new one.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), sessionIDKey, sessionIDFromRequest(r))
			ctx = context.WithValue(ctx, clientKey, IPFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
