package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/taskforge/internal/domain"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get retrieves a session by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

// Create starts an empty session.
func (s *MemoryStore) Create(_ context.Context) (*domain.Session, error) {
	sess := newSession(s.now())
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess.Clone(), nil
}

// Update applies fn to a copy of the session and stores it on success.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	next.UpdatedAt = s.now()
	s.sessions[id] = next
	return next.Clone(), nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// DeleteExpired removes sessions idle longer than ttl.
func (s *MemoryStore) DeleteExpired(_ context.Context, ttl time.Duration) ([]string, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.Expired(ttl, now) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	return expired, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
