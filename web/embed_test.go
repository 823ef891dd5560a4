package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func TestSPAHandlerServesEmbeddedPage(t *testing.T) {
	h := SPAHandler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<title>Taskforge</title>") {
		t.Fatalf("GET / = %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/ws/conversation") {
		t.Fatalf("GET /app.js = %d", w.Code)
	}
}

func TestNewHandlerRouting(t *testing.T) {
	site := fstest.MapFS{
		"index.html":    {Data: []byte("index")},
		"assets/app.js": {Data: []byte("js")},
	}
	h := NewHandler(site)

	tests := []struct {
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{http.MethodGet, "/", http.StatusOK, "index"},
		{http.MethodGet, "/assets/app.js", http.StatusOK, "js"},
		{http.MethodGet, "/conversation/view", http.StatusOK, "index"},
		{http.MethodGet, "/assets/missing.css", http.StatusNotFound, ""},
		{http.MethodGet, "/assets", http.StatusOK, "index"},
		{http.MethodPost, "/", http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != tt.wantCode {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, w.Code, tt.wantCode)
			continue
		}
		if tt.wantBody != "" && w.Body.String() != tt.wantBody {
			t.Errorf("%s %s body = %q, want %q", tt.method, tt.path, w.Body.String(), tt.wantBody)
		}
	}
}
