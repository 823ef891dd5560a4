package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger is anything whose reachability the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler that pings the session store.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store, timeout: 5 * time.Second}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "ok",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			status["status"] = "degraded"
			checks["store"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
