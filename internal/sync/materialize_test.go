package sync

import (
	"errors"
	"strings"
	"testing"
)

func TestGetRecordData(t *testing.T) {
	db := setupSyncDB(t)

	pushOne(t, db, "u1", PushRecord{Table: "daily_entries", RecordID: "r1", Operation: OpInsert, ClientVersion: 1, Data: entryData("present")})

	tx, _ := db.Begin()
	defer tx.Rollback()

	data, err := GetRecordData(tx, "daily_entries", "r1", "u1")
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if !strings.Contains(string(data), "present") {
		t.Errorf("unexpected payload: %s", data)
	}

	// Absent record is nil, not an error.
	data, err = GetRecordData(tx, "daily_entries", "missing", "u1")
	if err != nil {
		t.Fatalf("get absent: %v", err)
	}
	if data != nil {
		t.Errorf("absent record returned data: %s", data)
	}

	// Owner scoping.
	data, err = GetRecordData(tx, "daily_entries", "r1", "someone-else")
	if err != nil {
		t.Fatalf("get for other user: %v", err)
	}
	if data != nil {
		t.Errorf("record leaked across users: %s", data)
	}
}

func TestGetRecordData_UnknownTable(t *testing.T) {
	db := setupSyncDB(t)

	tx, _ := db.Begin()
	defer tx.Rollback()

	_, err := GetRecordData(tx, "secrets", "r1", "u1")
	if !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}
