package serverdb

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *ServerDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "daybook.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_InitializesSchema(t *testing.T) {
	db := openTestDB(t)

	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	// Sync tables come up alongside the account tables.
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM daily_entries`).Scan(&n); err != nil {
		t.Fatalf("query daily_entries: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM change_log`).Scan(&n); err != nil {
		t.Fatalf("query change_log: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daybook.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	u, err := db.CreateUser("reopen@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	got, err := db2.GetUserByID(u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got == nil || got.Email != "reopen@example.com" {
		t.Fatalf("user lost across reopen: %+v", got)
	}
}

func TestCreateUser(t *testing.T) {
	db := openTestDB(t)

	u, err := db.CreateUser("  Alice@Example.COM ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", u.Email)
	}
	if !strings.HasPrefix(u.ID, "u_") {
		t.Errorf("unexpected id format: %q", u.ID)
	}

	// Duplicate email rejected.
	if _, err := db.CreateUser("alice@example.com"); err == nil {
		t.Error("duplicate email accepted")
	}

	// Empty email rejected.
	if _, err := db.CreateUser("   "); err == nil {
		t.Error("empty email accepted")
	}
}

func TestAPIKey_GenerateAndVerify(t *testing.T) {
	db := openTestDB(t)

	u, err := db.CreateUser("key@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	plaintext, ak, err := db.GenerateAPIKey(u.ID, "laptop", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(plaintext, "dbk_live_") {
		t.Errorf("unexpected key prefix: %q", plaintext)
	}

	gotKey, gotUser, err := db.VerifyAPIKey(plaintext)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if gotKey == nil || gotUser == nil {
		t.Fatal("valid key not recognized")
	}
	if gotKey.ID != ak.ID || gotUser.ID != u.ID {
		t.Errorf("verify returned wrong identities: key=%+v user=%+v", gotKey, gotUser)
	}
	if gotKey.LastUsedAt == nil {
		t.Error("last_used_at not stamped on verify")
	}

	// Wrong key yields nils, not an error.
	gotKey, gotUser, err = db.VerifyAPIKey("dbk_live_nonsense")
	if err != nil {
		t.Fatalf("verify wrong key: %v", err)
	}
	if gotKey != nil || gotUser != nil {
		t.Error("bogus key verified")
	}
}

func TestAPIKey_Expired(t *testing.T) {
	db := openTestDB(t)

	u, _ := db.CreateUser("expired@example.com")
	past := time.Now().UTC().Add(-time.Hour)
	plaintext, _, err := db.GenerateAPIKey(u.ID, "old", &past)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	ak, user, err := db.VerifyAPIKey(plaintext)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ak != nil || user != nil {
		t.Error("expired key verified")
	}
}

func TestAPIKey_Revoke(t *testing.T) {
	db := openTestDB(t)

	u, _ := db.CreateUser("revoke@example.com")
	plaintext, ak, err := db.GenerateAPIKey(u.ID, "phone", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := db.RevokeAPIKey(ak.ID, "someone-else"); err == nil {
		t.Error("revoke by non-owner succeeded")
	}
	if err := db.RevokeAPIKey(ak.ID, u.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	gotKey, _, err := db.VerifyAPIKey(plaintext)
	if err != nil {
		t.Fatalf("verify after revoke: %v", err)
	}
	if gotKey != nil {
		t.Error("revoked key still verifies")
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := openTestDB(t)

	n, err := db.RunMigrations()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if n != 0 {
		t.Errorf("fresh db ran %d migrations, want 0", n)
	}
	if v := db.getSchemaVersion(); v != ServerSchemaVersion {
		t.Errorf("schema version: got %d, want %d", v, ServerSchemaVersion)
	}
}
