// Package domain contains core domain types for the assignment service.
package domain

import (
	"time"

	"github.com/ashureev/taskforge/internal/memory"
)

// Message roles exchanged with the oracle.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a manager-prompt conversation identified by an opaque token.
type Session struct {
	ID        string        `json:"session_id"`
	Messages  []Message     `json:"messages"`
	Memory    memory.Record `json:"memory"`
	Complete  bool          `json:"complete"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Append adds a message stamped with the current time.
func (s *Session) Append(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

// Round returns the number of user messages processed so far.
func (s *Session) Round() int {
	return s.Memory.Round
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Memory = s.Memory.Clone()
	return &out
}

// Expired reports whether the session has been idle longer than ttl.
// A non-positive ttl never expires.
func (s *Session) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}
