package sync

import (
	"database/sql"
	"fmt"
	"time"
)

// appendChange writes one change-log row. It runs in the same transaction as
// the mutation it records, so a change entry exists iff its write committed.
func appendChange(tx *sql.Tx, userID, table, recordID, op string, version int64, at time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO change_log (user_id, table_name, record_id, operation, version, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, table, recordID, op, version, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("append change %s/%s: %w", table, recordID, err)
	}
	return nil
}

// ChangesSince returns the user's change-log entries strictly after the
// checkpoint, ascending by event time (insertion order breaks ties). No
// changes is an empty slice, not an error.
func ChangesSince(tx *sql.Tx, userID string, since time.Time) ([]ChangeEntry, error) {
	rows, err := tx.Query(
		`SELECT table_name, record_id, operation, version, changed_at
		 FROM change_log WHERE user_id = ? AND changed_at > ?
		 ORDER BY changed_at ASC, id ASC`,
		userID, formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var entries []ChangeEntry
	for rows.Next() {
		var e ChangeEntry
		var changedAt string
		if err := rows.Scan(&e.Table, &e.RecordID, &e.Operation, &e.Version, &changedAt); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		if e.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return entries, nil
}

// ReadDelta assembles a delta response: the change log after the checkpoint
// with each non-DELETE entry joined to the record's current payload. DELETE
// entries are tombstones and carry no data.
func ReadDelta(tx *sql.Tx, userID string, since time.Time) ([]ChangeEntry, error) {
	entries, err := ChangesSince(tx, userID, since)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].Operation == OpDelete {
			continue
		}
		data, err := GetRecordData(tx, entries[i].Table, entries[i].RecordID, userID)
		if err != nil {
			return nil, fmt.Errorf("materialize %s/%s: %w", entries[i].Table, entries[i].RecordID, err)
		}
		entries[i].Data = data
	}
	return entries, nil
}
