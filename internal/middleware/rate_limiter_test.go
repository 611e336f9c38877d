package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterEnforcesBurst(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 3, time.Hour)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("request %d within the burst must be allowed", i+1)
		}
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("expected the request past the burst to be refused")
	}
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Hour)

	if !limiter.Allow("10.0.0.1") {
		t.Fatal("first request for the key must be allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("second request for the key must be refused")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("an unrelated key must not share the budget")
	}
}

func TestRateLimiterExpiresIdleVisitors(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Minute)
	keyed := limiter.(*keyedRateLimiter)

	current := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	keyed.WithNowFunc(func() time.Time { return current })

	keyed.Allow("10.0.0.1")
	keyed.Allow("10.0.0.2")

	current = current.Add(2 * time.Minute)
	keyed.Allow("10.0.0.3")

	keyed.mu.Lock()
	defer keyed.mu.Unlock()
	if len(keyed.visitors) != 1 {
		t.Fatalf("expected idle visitors expired, got %d entries", len(keyed.visitors))
	}
	if _, ok := keyed.visitors["10.0.0.3"]; !ok {
		t.Fatal("expected the fresh visitor to survive the sweep")
	}
}

func TestRateLimiterDefaultsEmptyKey(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Hour)

	if !limiter.Allow("") {
		t.Fatal("first request for the empty key must be allowed")
	}
	if limiter.Allow("unknown") {
		t.Fatal("the empty key and the unknown bucket must share a budget")
	}
}
