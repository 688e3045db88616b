package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterPerIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 0.001, 2)
	h := rl.Middleware(okHandler())

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/professionals/search", nil)
		req.RemoteAddr = addr
		return serve(h, req).Code
	}

	if code := call("10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := call("10.0.0.1:5678"); code != http.StatusOK {
		t.Fatalf("second request within burst: %d", code)
	}
	if code := call("10.0.0.1:9999"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}
	if code := call("10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("other ip should not be limited, got %d", code)
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 1)
	rl.Allow("10.0.0.3")

	rl.evict(time.Now().Add(10 * time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.clients) != 0 {
		t.Fatalf("expected idle client evicted, have %d", len(rl.clients))
	}
}
