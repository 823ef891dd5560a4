package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name            string
		allowed         []string
		origin          string
		method          string
		preflight       bool
		wantCode        int
		wantOrigin      string
		wantCredentials string
	}{
		{"wildcard echoes origin", []string{"*"}, "http://app.test", http.MethodGet, false, http.StatusTeapot, "http://app.test", ""},
		{"explicit origin allows credentials", []string{"http://app.test"}, "http://app.test", http.MethodPost, false, http.StatusTeapot, "http://app.test", "true"},
		{"explicit wins over wildcard", []string{"*", "http://app.test"}, "http://app.test", http.MethodGet, false, http.StatusTeapot, "http://app.test", "true"},
		{"unknown origin gets no headers", []string{"http://app.test"}, "http://evil.test", http.MethodGet, false, http.StatusTeapot, "", ""},
		{"same-origin request passes", []string{"http://app.test"}, "", http.MethodGet, false, http.StatusTeapot, "", ""},
		{"preflight short-circuits", []string{"*"}, "http://app.test", http.MethodOptions, true, http.StatusNoContent, "http://app.test", ""},
		{"preflight from unknown origin", []string{"http://app.test"}, "http://evil.test", http.MethodOptions, true, http.StatusForbidden, "", ""},
		{"plain options reaches handler", []string{"*"}, "http://app.test", http.MethodOptions, false, http.StatusTeapot, "http://app.test", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/user-message", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredentials {
				t.Errorf("allow credentials = %q, want %q", got, tt.wantCredentials)
			}
			if tt.wantOrigin != "" && w.Header().Get("Access-Control-Allow-Headers") != allowHeaders {
				t.Errorf("allow headers = %q", w.Header().Get("Access-Control-Allow-Headers"))
			}
			if tt.wantCode == http.StatusNoContent && w.Header().Get("Access-Control-Max-Age") != "600" {
				t.Errorf("max age = %q", w.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}
