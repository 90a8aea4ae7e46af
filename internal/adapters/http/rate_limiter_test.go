package http

import (
	"testing"
	"time"
)

func TestAuthRateLimiterWindow(t *testing.T) {
	rl := NewAuthRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two attempts should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third attempt inside the window should be blocked")
	}
	if !rl.Allow("b") {
		t.Fatal("limits are per client")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("attempt after the window should pass")
	}
}

func (rl *AuthRateLimiter) clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}

func TestAuthRateLimiterForgetsIdleClients(t *testing.T) {
	rl := NewAuthRateLimiter(3, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	for _, c := range []string{"a", "b", "c"} {
		rl.Allow(c)
	}
	if got := rl.clients(); got != 3 {
		t.Fatalf("clients = %d, want 3", got)
	}

	now = now.Add(2 * time.Minute)
	if !rl.Allow("d") {
		t.Fatal("new client should pass")
	}
	if got := rl.clients(); got != 1 {
		t.Errorf("clients = %d after idle window, want 1", got)
	}
}

func TestAuthRateLimiterDisabled(t *testing.T) {
	var rl *AuthRateLimiter
	if !rl.Allow("a") {
		t.Fatal("nil limiter should allow")
	}
	if !NewAuthRateLimiter(0, time.Second).Allow("a") {
		t.Fatal("zero limit should allow")
	}
}
