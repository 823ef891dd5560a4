package store

import (
	"context"
	"log/slog"
	"time"
)

// ExpireCallback is called for every session removed by the sweeper.
type ExpireCallback func(sessionID string)

// StartSweeper runs a background goroutine that periodically deletes
// sessions idle longer than ttl. The returned channel is closed once the
// goroutine has exited. A non-positive ttl or interval disables sweeping.
func StartSweeper(ctx context.Context, s Store, ttl, interval time.Duration, onExpire ExpireCallback) <-chan struct{} {
	done := make(chan struct{})
	if ttl <= 0 || interval <= 0 {
		close(done)
		return done
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, s, ttl, onExpire)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweep(ctx context.Context, s Store, ttl time.Duration, onExpire ExpireCallback) {
	expired, err := s.DeleteExpired(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Session sweeper failed to delete expired sessions", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	slog.Info("Session sweeper removed expired sessions", "count", len(expired))
	if onExpire == nil {
		return
	}
	for _, id := range expired {
		onExpire(id)
	}
}
