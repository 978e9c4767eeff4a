package sync

import (
	"encoding/json"
	"time"
)

// Operations a client may claim for a pushed record.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ValidOperation reports whether op is one of the three operation literals.
func ValidOperation(op string) bool {
	return op == OpInsert || op == OpUpdate || op == OpDelete
}

// PushRecord is a single client-submitted mutation.
type PushRecord struct {
	Table         string
	RecordID      string
	Operation     string
	ClientVersion int64
	Data          json.RawMessage // required unless Operation is DELETE
}

// RecordResult is the per-record outcome of a push. Exactly one of a
// successful version, a conflict flag, or an error string is meaningful.
type RecordResult struct {
	Table       string
	RecordID    string
	Success     bool
	NewVersion  int64 // 0 when no version was assigned (trivial deletes, failures)
	HasConflict bool
	Err         string
}

// Conflict carries everything a client needs to resolve a rejected push.
// The server's stored state is returned verbatim and is never modified by
// the losing push.
type Conflict struct {
	Table            string
	RecordID         string
	ClientVersion    int64
	ServerVersion    int64
	ServerData       json.RawMessage
	ClientData       json.RawMessage // the rejected payload, not persisted
	IsDeleteConflict bool            // the rejected operation was DELETE
}

// PushResult aggregates the outcomes of one push batch. Results is parallel
// to the submitted records; Conflicts is the subset that lost to the server.
type PushResult struct {
	Results   []RecordResult
	Conflicts []Conflict
}

// ChangeEntry is one row of the append-only change log, optionally joined
// with the record's current payload for INSERT/UPDATE entries.
type ChangeEntry struct {
	Table     string
	RecordID  string
	Operation string
	Version   int64
	ChangedAt time.Time
	Data      json.RawMessage // nil for DELETE entries
}

// StoredRecord is the server's current state for one syncable row.
type StoredRecord struct {
	RecordID  string
	Version   int64
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
