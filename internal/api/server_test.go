package api

import (
	"net/http"
	"strings"
	"testing"
)

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	var body map[string]string
	resp := h.DoJSON("GET", "/healthz", "", nil, &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: %q", body["status"])
	}
}

func TestMetricz(t *testing.T) {
	h := newHarness(t)

	h.Do("GET", "/healthz", "", nil)

	var snap MetricsSnapshot
	resp := h.DoJSON("GET", "/metricz", "", nil, &snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if snap.Requests == 0 {
		t.Error("request counter not incremented")
	}
}

func TestAuth_Required(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		method, path string
	}{
		{"POST", "/v1/sync/push"},
		{"GET", "/v1/sync/delta"},
		{"GET", "/v1/sync/snapshot"},
	}
	for _, tc := range cases {
		resp, raw := h.Do(tc.method, tc.path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status %d", tc.method, tc.path, resp.StatusCode)
		}
		if !strings.Contains(string(raw), ErrCodeUnauthorized) {
			t.Errorf("%s %s: missing error code in %s", tc.method, tc.path, raw)
		}
	}
}

func TestAuth_BadToken(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.Do("GET", "/v1/sync/delta?since=2026-01-01T00:00:00Z", "dbk_live_bogus", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bogus token: status %d", resp.StatusCode)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.Do("GET", "/healthz", "", nil)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}
