package agent

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/taskforge/internal/api"
	"github.com/ashureev/taskforge/internal/assignment"
	"github.com/ashureev/taskforge/internal/identity"
	"github.com/ashureev/taskforge/internal/issues"
	"github.com/ashureev/taskforge/internal/oracle"
	"github.com/ashureev/taskforge/internal/store"
)

// HandlerConfig holds HTTP limits for the agent handler.
type HandlerConfig struct {
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	MaxRequestBodySize int64
	AllowedOrigins     []string
}

// Handler serves the conversation, workflow and assignment endpoints.
type Handler struct {
	svc         *Service
	rateLimiter *RateLimiter
	conns       *ConnRegistry
	maxBodySize int64
	origins     []string
}

// NewHandler creates a Handler.
func NewHandler(svc *Service, cfg HandlerConfig) *Handler {
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 30
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = api.DefaultMaxRequestBodySize
	}
	return &Handler{
		svc:         svc,
		rateLimiter: NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		conns:       NewConnRegistry(),
		maxBodySize: cfg.MaxRequestBodySize,
		origins:     cfg.AllowedOrigins,
	}
}

// RegisterRoutes registers the agent routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post("/user-message", h.HandleUserMessage)
		r.Post("/prompt", h.HandlePrompt)
		r.Post("/generate-assignment", h.HandleGenerateAssignment)
	})
	r.Get("/conversation/{sessionID}", h.HandleConversation)
	r.Get("/ws/conversation", h.HandleWebSocket)
}

// SessionExpired releases everything held for an expired session.
func (h *Handler) SessionExpired(sessionID string) {
	h.svc.Forget(sessionID)
	h.conns.CloseSession(sessionID)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
	h.svc.Close()
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.rateLimiter.Allow(clientKey(r)) {
			api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if key := identity.ClientFromContext(r.Context()); key != "" {
		return key
	}
	return identity.IPFromRequest(r)
}

// HandleUserMessage handles POST /user-message. A string message is a
// conversation turn; an object message runs the whole workflow.
func (h *Handler) HandleUserMessage(w http.ResponseWriter, r *http.Request) {
	h.handleMessage(w, r, true)
}

// HandlePrompt handles POST /prompt, which only accepts conversation turns.
func (h *Handler) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	h.handleMessage(w, r, false)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request, allowWorkflow bool) {
	var req Request
	if err := api.DecodeJSON(w, r, h.maxBodySize, &req); err != nil {
		api.DecodeError(w, err)
		return
	}
	status, body := h.dispatch(r.Context(), req, identity.SessionIDFromContext(r.Context()), allowWorkflow)
	api.JSON(w, status, body)
}

// dispatch runs a request envelope and returns the status and body to send.
// It is shared by the HTTP and websocket front-ends.
func (h *Handler) dispatch(ctx context.Context, req Request, fallbackSession string, allowWorkflow bool) (int, any) {
	if req.Message.Empty() {
		return http.StatusBadRequest, errorBody("message is required")
	}

	if text, ok := req.Message.Text(); ok {
		sessionID := identity.SanitizeSessionID(req.SessionID)
		if sessionID == "" {
			sessionID = fallbackSession
		}
		turn, err := h.svc.Converse(ctx, sessionID, text)
		if err != nil {
			return errorResponse(ctx, err)
		}
		return http.StatusOK, turnResponse(turn)
	}

	if !allowWorkflow {
		return http.StatusBadRequest, errorBody(ErrEmptyMessage.Error())
	}
	desc, ok, err := req.Message.Description()
	if !ok {
		return http.StatusBadRequest, errorBody(errUnsupportedMessage.Error())
	}
	if err != nil {
		return http.StatusBadRequest, errorBody("invalid task description")
	}
	slog.Info("Running assignment workflow", "request_id", chiMiddleware.GetReqID(ctx), "language", desc.Language)
	result, err := h.svc.RunWorkflow(ctx, desc)
	if err != nil {
		return errorResponse(ctx, err)
	}
	return http.StatusOK, workflowResponse(result)
}

// HandleGenerateAssignment handles POST /generate-assignment.
func (h *Handler) HandleGenerateAssignment(w http.ResponseWriter, r *http.Request) {
	var in assignment.Input
	if err := api.DecodeJSON(w, r, h.maxBodySize, &in); err != nil {
		api.DecodeError(w, err)
		return
	}
	result, err := h.svc.GenerateAssignment(r.Context(), in)
	if err != nil {
		status, body := errorResponse(r.Context(), err)
		api.JSON(w, status, body)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"result": result})
}

// HandleConversation handles GET /conversation/{sessionID}.
func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	id := identity.SanitizeSessionID(chi.URLParam(r, "sessionID"))
	if id == "" {
		api.Error(w, http.StatusNotFound, store.ErrNotFound.Error())
		return
	}
	sess, err := h.svc.History(r.Context(), id)
	if err != nil {
		status, body := errorResponse(r.Context(), err)
		api.JSON(w, status, body)
		return
	}
	api.JSON(w, http.StatusOK, HistoryResponse{
		SessionID: sess.ID,
		Messages:  sess.Messages,
		Round:     sess.Round(),
		Complete:  sess.Complete,
		Memory:    sess.Memory.Summary(),
	})
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// errorResponse maps a service error to a status code and error body.
func errorResponse(ctx context.Context, err error) (int, any) {
	reqID := chiMiddleware.GetReqID(ctx)
	var missing *MissingFieldsError
	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest, errorBody(missing.Error())
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidDescription):
		return http.StatusBadRequest, errorBody(err.Error())
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, errorBody(err.Error())
	case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrSessionComplete):
		return http.StatusConflict, errorBody(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody("request timed out")
	case errors.Is(err, oracle.ErrUnavailable), errors.Is(err, oracle.ErrEmptyResponse),
		errors.Is(err, issues.ErrAllSearchesFailed):
		slog.Warn("Upstream request failed", "request_id", reqID, "error", err)
		return http.StatusBadGateway, errorBody(err.Error())
	default:
		slog.Error("Request failed", "request_id", reqID, "error", err)
		return http.StatusInternalServerError, errorBody(err.Error())
	}
}
