package api

import (
	"net/http"
	"testing"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 5; i++ {
		if !rl.Allow("k1", 5) {
			t.Fatalf("request %d denied under limit", i+1)
		}
	}
	if rl.Allow("k1", 5) {
		t.Error("request over limit allowed")
	}

	// Other keys have their own window.
	if !rl.Allow("k2", 5) {
		t.Error("unrelated key denied")
	}
}

func TestRateLimit_Endpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitSnapshot = 2
	h := newHarnessWithConfig(t, cfg)
	_, token := h.CreateUser()

	for i := 0; i < 2; i++ {
		resp, _ := h.Do("GET", "/v1/sync/snapshot", token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, resp.StatusCode)
		}
	}
	resp, raw := h.Do("GET", "/v1/sync/snapshot", token, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429\nbody: %s", resp.StatusCode, raw)
	}

	// Other endpoints are limited independently.
	resp, _ = h.Do("GET", "/v1/sync/delta?since=2020-01-01T00:00:00Z", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delta caught by snapshot limit: status %d", resp.StatusCode)
	}
}
