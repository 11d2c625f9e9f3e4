package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(rate.Limit(1), 2)
	l.now = func() time.Time { return now }

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("expected third request to be denied")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("expected other IP to have its own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Fatal("expected token to refill after one second")
	}

	now = now.Add(5 * time.Minute)
	l.Allow("10.0.0.2")
	if n := l.Prune(3 * time.Minute); n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	if got := clientIP(req); got != "192.0.2.7" {
		t.Errorf("clientIP = %q", got)
	}
	req.RemoteAddr = "192.0.2.8"
	if got := clientIP(req); got != "192.0.2.8" {
		t.Errorf("clientIP without port = %q", got)
	}
}
