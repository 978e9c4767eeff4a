package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/marin/daybook/internal/serverdb"
)

// TestHarness bundles a store, a server, and an httptest listener so HTTP
// tests exercise the full middleware chain.
type TestHarness struct {
	t      *testing.T
	Store  *serverdb.ServerDB
	Server *Server
	HTTP   *httptest.Server
}

func newHarness(t *testing.T) *TestHarness {
	return newHarnessWithConfig(t, DefaultConfig())
}

func newHarnessWithConfig(t *testing.T, cfg Config) *TestHarness {
	t.Helper()

	store, err := serverdb.Open(filepath.Join(t.TempDir(), "daybook.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	srv, err := NewServer(cfg, store)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(func() {
		ts.Close()
		store.Close()
	})

	return &TestHarness{t: t, Store: store, Server: srv, HTTP: ts}
}

// CreateUser provisions a user plus an API key and returns the user id and
// the plaintext bearer token.
func (h *TestHarness) CreateUser() (userID, token string) {
	h.t.Helper()

	email := fmt.Sprintf("%s@example.com", uuid.NewString()[:8])
	u, err := h.Store.CreateUser(email)
	if err != nil {
		h.t.Fatalf("create user: %v", err)
	}
	plaintext, _, err := h.Store.GenerateAPIKey(u.ID, "test", nil)
	if err != nil {
		h.t.Fatalf("generate key: %v", err)
	}
	return u.ID, plaintext
}

// Do sends a request with an optional bearer token and JSON body, returning
// the response and its decoded body.
func (h *TestHarness) Do(method, path, token string, body any) (*http.Response, []byte) {
	h.t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, h.HTTP.URL+path, rdr)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.HTTP.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

// DoJSON is Do plus decoding the response body into out.
func (h *TestHarness) DoJSON(method, path, token string, body, out any) *http.Response {
	h.t.Helper()
	resp, raw := h.Do(method, path, token, body)
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			h.t.Fatalf("decode %s %s response: %v\nbody: %s", method, path, err, raw)
		}
	}
	return resp
}

// pushRecord builds a valid push record input for daily_entries.
func entryPush(recordID, op string, clientVersion int64, title string) PushRecordInput {
	data, _ := json.Marshal(map[string]any{
		"entry_date": "2026-08-29",
		"title":      title,
		"content":    "wrote some tests",
	})
	rec := PushRecordInput{
		TableName:     "daily_entries",
		RecordID:      recordID,
		Operation:     op,
		ClientVersion: clientVersion,
	}
	if op != "DELETE" {
		rec.Data = data
	}
	return rec
}
