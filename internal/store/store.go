// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/taskforge/internal/domain"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Store persists conversation sessions. Implementations return copies, so
// callers never share state with the store or with each other.
type Store interface {
	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Create starts an empty session with a fresh ID.
	Create(ctx context.Context) (*domain.Session, error)

	// Update applies fn to the stored session and saves the result. If fn
	// returns an error nothing is written. UpdatedAt is refreshed on success.
	Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error)

	// Delete removes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes sessions idle longer than ttl and returns their IDs.
	DeleteExpired(ctx context.Context, ttl time.Duration) ([]string, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// NewID returns a new opaque session identifier.
func NewID() string {
	return uuid.NewString()
}

func newSession(now time.Time) *domain.Session {
	return &domain.Session{
		ID:        NewID(),
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
