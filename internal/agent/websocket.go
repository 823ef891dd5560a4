package agent

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/taskforge/internal/identity"
)

// HandleWebSocket handles GET /ws/conversation. Each text frame is a
// Request envelope and is answered with a Response envelope, or with an
// error body carrying the HTTP-equivalent status.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	client := clientKey(r)
	fallbackSession := identity.SessionIDFromContext(r.Context())
	registered := ""

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(h.origins),
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "client", client)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "conversation ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "client", client)
		}
	}()
	ws.SetReadLimit(h.maxBodySize)
	defer h.conns.Unregister(ws)

	ctx := r.Context()
	slog.Info("Conversation websocket connected", "client", client)

	for {
		var req Request
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "client", client)
			} else {
				slog.Warn("WebSocket read error", "error", err, "client", client)
			}
			return
		}

		var body any
		if !h.rateLimiter.Allow(client) {
			body = wsError(http.StatusTooManyRequests, "rate limit exceeded")
		} else {
			status, resp := h.dispatch(ctx, req, fallbackSession, true)
			if status != http.StatusOK {
				body = wsError(status, errorMessage(resp))
			} else {
				body = resp
				if turn, ok := resp.(Response); ok && turn.SessionID != "" {
					// A finished conversation is forgotten so the next
					// frame without a session_id starts a new one.
					next := turn.SessionID
					if turn.Complete {
						next = ""
					}
					h.conns.Move(ws, registered, next)
					registered = next
					fallbackSession = next
				}
			}
		}

		if err := wsjson.Write(ctx, ws, body); err != nil {
			slog.Debug("Failed to write websocket response", "error", err, "client", client)
			return
		}
	}
}

type wsErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func wsError(status int, msg string) wsErrorBody {
	return wsErrorBody{Error: msg, Status: status}
}

func errorMessage(body any) string {
	if m, ok := body.(map[string]string); ok {
		return m["error"]
	}
	return http.StatusText(http.StatusInternalServerError)
}

// originPatterns converts configured CORS origins into host patterns.
func originPatterns(origins []string) []string {
	var patterns []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
