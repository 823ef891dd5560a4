package agent

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should be allowed")
	}
	if rl.Allow("a") {
		t.Fatal("third request inside the window should be rejected")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own budget")
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("a") {
		t.Fatal("requests should be allowed again after the window")
	}
}

func TestRateLimiterEvict(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("a")

	now = now.Add(2 * time.Minute)
	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.requests) != 0 {
		t.Fatalf("expected expired keys to be evicted, got %d", len(rl.requests))
	}
}
