package sync

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// SnapshotRecord is one row of a full snapshot, system columns included.
type SnapshotRecord struct {
	RecordID  string          `json:"record_id"`
	Version   int64           `json:"version"`
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	DeletedAt *string         `json:"deleted_at,omitempty"`
}

// Snapshot is a user's complete current state, keyed by table name.
type Snapshot struct {
	Tables map[string][]SnapshotRecord
	Counts map[string]int
}

// ExportSnapshot dumps every row in every registry table for one user,
// soft-deleted rows included, in one read transaction for a consistent view.
// Intended for first-device bootstrap or lost-checkpoint recovery only:
// cost is proportional to everything the user owns.
func ExportSnapshot(db *sql.DB, userID string) (*Snapshot, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := &Snapshot{
		Tables: make(map[string][]SnapshotRecord, len(syncedTables)),
		Counts: make(map[string]int, len(syncedTables)),
	}

	for _, table := range Tables() {
		records, err := snapshotTable(tx, table, userID)
		if err != nil {
			return nil, err
		}
		snap.Tables[table] = records
		snap.Counts[table] = len(records)
	}

	return snap, nil
}

func snapshotTable(tx *sql.Tx, table, userID string) ([]SnapshotRecord, error) {
	query := fmt.Sprintf(
		`SELECT record_id, version, data, created_at, updated_at, deleted_at FROM %s WHERE user_id = ? ORDER BY record_id`,
		table,
	)
	rows, err := tx.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", table, err)
	}
	defer rows.Close()

	records := []SnapshotRecord{}
	for rows.Next() {
		var rec SnapshotRecord
		var deletedAt sql.NullString
		if err := rows.Scan(&rec.RecordID, &rec.Version, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("snapshot %s: scan: %w", table, err)
		}
		if deletedAt.Valid {
			rec.DeletedAt = &deletedAt.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot %s: iterate: %w", table, err)
	}
	return records, nil
}
