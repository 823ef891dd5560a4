package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"

	"github.com/ashureev/taskforge/internal/domain"
	"github.com/ashureev/taskforge/internal/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// database/sql keeps a connection opener alive until Close.
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
}

func TestStoreCreateGet(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created, err := s.Create(ctx)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created.ID == "" {
			t.Fatal("expected a session ID")
		}

		got, err := s.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ID != created.ID || len(got.Messages) != 0 || got.Complete {
			t.Fatalf("unexpected session: %+v", got)
		}
	})
}

func TestStoreGetUnknown(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		_, err := s.Update(context.Background(), "missing", func(*domain.Session) error { return nil })
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound from Update, got %v", err)
		}
	})
}

func TestStoreUpdatePersists(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sess, err := s.Create(ctx)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		_, err = s.Update(ctx, sess.ID, func(sess *domain.Session) error {
			sess.Append(domain.RoleUser, "senior backend developer")
			sess.Memory = memory.Update(sess.Memory, "senior backend developer").Advance()
			sess.Complete = true
			return nil
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}

		got, err := s.Get(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.Complete || got.Round() != 1 {
			t.Fatalf("complete = %v round = %d", got.Complete, got.Round())
		}
		if got.Memory.Level.Or("") != "Senior" {
			t.Fatalf("memory not persisted: %+v", got.Memory)
		}
		want := []domain.Message{{Role: domain.RoleUser, Content: "senior backend developer"}}
		if diff := cmp.Diff(want, got.Messages, cmpopts.IgnoreFields(domain.Message{}, "CreatedAt")); diff != "" {
			t.Fatalf("messages mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestStoreUpdateErrorDiscardsChanges(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sess, _ := s.Create(ctx)
		boom := errors.New("boom")

		_, err := s.Update(ctx, sess.ID, func(sess *domain.Session) error {
			sess.Append(domain.RoleUser, "discard me")
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected fn error, got %v", err)
		}
		got, _ := s.Get(ctx, sess.ID)
		if len(got.Messages) != 0 {
			t.Fatalf("expected no messages, got %d", len(got.Messages))
		}
	})
}

func TestStoreReturnsCopies(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sess, _ := s.Create(ctx)
		sess.Append(domain.RoleUser, "local only")

		got, _ := s.Get(ctx, sess.ID)
		if len(got.Messages) != 0 {
			t.Fatal("mutating a returned session must not change the store")
		}
	})
}

func TestStoreDelete(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sess, _ := s.Create(ctx)
		if err := s.Delete(ctx, sess.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := s.Delete(ctx, sess.ID); err != nil {
			t.Fatalf("second Delete should be a no-op, got %v", err)
		}
		if _, err := s.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMemoryDeleteExpired(t *testing.T) {
	s := NewMemory()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	old, _ := s.Create(ctx)
	now = now.Add(2 * time.Hour)
	fresh, _ := s.Create(ctx)

	expired, err := s.DeleteExpired(ctx, time.Hour)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if diff := cmp.Diff([]string{old.ID}, expired); diff != "" {
		t.Fatalf("expired mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
}

func TestSQLiteDeleteExpired(t *testing.T) {
	s := newSQLiteStore(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	old, _ := s.Create(ctx)
	now = now.Add(2 * time.Hour)
	fresh, _ := s.Create(ctx)

	expired, err := s.DeleteExpired(ctx, time.Hour)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if diff := cmp.Diff([]string{old.ID}, expired); diff != "" {
		t.Fatalf("expired mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}

	if ids, err := s.DeleteExpired(ctx, 0); err != nil || ids != nil {
		t.Fatalf("zero ttl should be a no-op, got %v %v", ids, err)
	}
}

func TestSQLiteConcurrentUpdates(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	sess, _ := s.Create(ctx)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, sess.ID, func(sess *domain.Session) error {
				sess.Append(domain.RoleUser, "hello")
				return nil
			})
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, sess.ID)
	if len(got.Messages) != writers {
		t.Fatalf("messages = %d, want %d", len(got.Messages), writers)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	sess, _ := s.Create(context.Background())
	_ = s.Close()

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), sess.ID); err != nil {
		t.Fatalf("session lost after reopen: %v", err)
	}
}
