package sync

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExportSnapshot(t *testing.T) {
	db := setupSyncDB(t)

	push(t, db, "u1", []PushRecord{
		{Table: "daily_entries", RecordID: "r1", Operation: OpInsert, ClientVersion: 1, Data: entryData("one")},
		{Table: "daily_entries", RecordID: "r2", Operation: OpInsert, ClientVersion: 1, Data: entryData("two")},
		{Table: "user_settings", RecordID: "s1", Operation: OpInsert, ClientVersion: 1, Data: json.RawMessage(`{"key":"theme","value":"dark"}`)},
	})
	pushOne(t, db, "u2", PushRecord{Table: "daily_entries", RecordID: "other", Operation: OpInsert, ClientVersion: 1, Data: entryData("not yours")})

	snap, err := ExportSnapshot(db, "u1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	// Every registry table appears, populated or not.
	for _, table := range Tables() {
		if _, ok := snap.Tables[table]; !ok {
			t.Errorf("table %s missing from snapshot", table)
		}
	}

	if snap.Counts["daily_entries"] != 2 {
		t.Errorf("daily_entries count: got %d, want 2", snap.Counts["daily_entries"])
	}
	if snap.Counts["user_settings"] != 1 {
		t.Errorf("user_settings count: got %d, want 1", snap.Counts["user_settings"])
	}
	if snap.Counts["mood_logs"] != 0 {
		t.Errorf("mood_logs count: got %d, want 0", snap.Counts["mood_logs"])
	}

	for _, rec := range snap.Tables["daily_entries"] {
		if strings.Contains(string(rec.Data), "not yours") {
			t.Errorf("snapshot leaked another user's record: %s", rec.Data)
		}
	}
}

func TestExportSnapshot_IncludesSoftDeleted(t *testing.T) {
	db := setupSyncDB(t)

	pushOne(t, db, "u1", PushRecord{Table: "daily_entries", RecordID: "r1", Operation: OpInsert, ClientVersion: 1, Data: entryData("doomed")})
	pushOne(t, db, "u1", PushRecord{Table: "daily_entries", RecordID: "r1", Operation: OpDelete, ClientVersion: 1})

	snap, err := ExportSnapshot(db, "u1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	recs := snap.Tables["daily_entries"]
	if len(recs) != 1 {
		t.Fatalf("records: got %d, want 1 (tombstones included)", len(recs))
	}
	if recs[0].DeletedAt == nil {
		t.Error("deleted_at not set on tombstone")
	}
	if recs[0].Version != 2 {
		t.Errorf("version: got %d, want 2", recs[0].Version)
	}
}
