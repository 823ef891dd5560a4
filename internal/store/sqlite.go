package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashureev/taskforge/internal/domain"
	"github.com/ashureev/taskforge/internal/memory"
	"github.com/ashureev/taskforge/internal/shared"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Store using SQLite. Messages and memory are stored
// as JSON columns.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex // serializes read-modify-write to avoid SQLITE_BUSY
	now func() time.Time
}

// NewSQLite opens (or creates) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		messages_json TEXT NOT NULL,
		memory_json TEXT NOT NULL,
		complete INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const selectSession = `
	SELECT session_id, messages_json, memory_json, complete, created_at, updated_at
	FROM sessions WHERE session_id = ?`

// Get retrieves a session by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, selectSession, id))
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Create starts an empty session.
func (s *SQLiteStore) Create(ctx context.Context) (*domain.Session, error) {
	sess := newSession(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	err := shared.RetryOnConflict(ctx, "create session", retryAttempts, retryBaseDelay, func() error {
		return s.insert(ctx, s.db, sess)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Update applies fn inside a transaction.
func (s *SQLiteStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *domain.Session
	err := shared.RetryOnConflict(ctx, "update session", retryAttempts, retryBaseDelay, func() error {
		var err error
		updated, err = s.updateOnce(ctx, id, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLiteStore) updateOnce(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sess, err := scanSession(tx.QueryRowContext(ctx, selectSession, id))
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.ID = id
	sess.UpdatedAt = s.now()

	messagesJSON, memoryJSON, err := encodeSession(sess)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET messages_json = ?, memory_json = ?, complete = ?, updated_at = ?
		WHERE session_id = ?`,
		messagesJSON, memoryJSON, boolToInt(sess.Complete), sess.UpdatedAt.UnixMilli(), id)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session update: %w", err)
	}
	return sess, nil
}

// Delete removes a session.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return shared.RetryOnConflict(ctx, "delete session", retryAttempts, retryBaseDelay, func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// DeleteExpired removes sessions idle longer than ttl.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		return nil, nil
	}
	threshold := s.now().Add(-ttl).UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	if closeErr := rows.Close(); closeErr != nil {
		slog.Warn("failed to close expired sessions rows", "error", closeErr)
	}

	if len(ids) == 0 {
		return nil, nil
	}
	err = shared.RetryOnConflict(ctx, "delete expired sessions", retryAttempts, retryBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete expired sessions: %w", err)
	}
	return ids, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insert(ctx context.Context, db execer, sess *domain.Session) error {
	messagesJSON, memoryJSON, err := encodeSession(sess)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, messages_json, memory_json, complete, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, messagesJSON, memoryJSON, boolToInt(sess.Complete),
		sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		sess                     domain.Session
		messagesJSON, memoryJSON string
		complete                 int
		createdAt, updatedAt     int64
	)
	err := row.Scan(&sess.ID, &messagesJSON, &memoryJSON, &complete, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &sess.Messages); err != nil {
		return nil, fmt.Errorf("decode session messages: %w", err)
	}
	var rec memory.Record
	if err := json.Unmarshal([]byte(memoryJSON), &rec); err != nil {
		return nil, fmt.Errorf("decode session memory: %w", err)
	}
	sess.Memory = rec
	sess.Complete = complete != 0
	sess.CreatedAt = time.UnixMilli(createdAt).UTC()
	sess.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &sess, nil
}

func encodeSession(sess *domain.Session) (string, string, error) {
	messages := sess.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return "", "", fmt.Errorf("encode session messages: %w", err)
	}
	memoryJSON, err := json.Marshal(sess.Memory)
	if err != nil {
		return "", "", fmt.Errorf("encode session memory: %w", err)
	}
	return string(messagesJSON), string(memoryJSON), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
