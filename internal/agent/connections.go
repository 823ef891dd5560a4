package agent

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ConnRegistry tracks which websocket connections are talking to which session.
type ConnRegistry struct {
	mu     sync.RWMutex
	active map[string]map[*websocket.Conn]struct{}
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{
		active: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Register associates conn with a session.
func (m *ConnRegistry) Register(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(sessionID, conn)
}

// Move reassigns conn from one session to another. An empty from or to
// skips that side, so Move(conn, id, "") only detaches conn from id.
func (m *ConnRegistry) Move(conn *websocket.Conn, from, to string) {
	if from == to {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if from != "" {
		m.remove(from, conn)
	}
	if to != "" {
		m.add(to, conn)
	}
}

func (m *ConnRegistry) add(sessionID string, conn *websocket.Conn) {
	if _, ok := m.active[sessionID]; !ok {
		m.active[sessionID] = make(map[*websocket.Conn]struct{})
	}
	m.active[sessionID][conn] = struct{}{}
}

func (m *ConnRegistry) remove(sessionID string, conn *websocket.Conn) {
	conns, ok := m.active[sessionID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(m.active, sessionID)
	}
}

// Unregister removes conn from every session.
func (m *ConnRegistry) Unregister(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sid := range m.active {
		m.remove(sid, conn)
	}
}

// Count returns the number of connections registered for a session.
func (m *ConnRegistry) Count(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[sessionID])
}

// CloseSession closes every connection registered for an expired session.
// It does not wait for the close handshakes.
func (m *ConnRegistry) CloseSession(sessionID string) {
	m.mu.Lock()
	conns := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()

	for conn := range conns {
		go func(c *websocket.Conn) {
			if err := c.Close(websocket.StatusNormalClosure, "session expired"); err != nil {
				slog.Debug("Failed to close websocket for expired session", "session_id", sessionID, "error", err)
			}
		}(conn)
	}
	if len(conns) > 0 {
		slog.Info("Websocket connections closed for expired session", "session_id", sessionID, "count", len(conns))
	}
}
