package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrUnknownTable marks a table name outside the sync registry. Seeing it
// for a name that came from our own change log is a programming error, not
// a retryable condition.
var ErrUnknownTable = errors.New("table not in sync registry")

// ApplyPush processes one client batch inside the given transaction and
// returns one outcome per record in submission order. A single record's
// conflict or failure never stops the remaining records; only the caller's
// commit decides whether the batch persists.
func ApplyPush(tx *sql.Tx, userID string, records []PushRecord) (PushResult, error) {
	var result PushResult
	now := time.Now().UTC()

	for _, rec := range records {
		rr, conflict := applyRecord(tx, userID, rec, now)
		result.Results = append(result.Results, rr)
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
		}
	}

	return result, nil
}

// applyRecord applies a single mutation and reports its outcome. Non-nil
// conflict means the server's version won; the stored row is untouched.
func applyRecord(tx *sql.Tx, userID string, rec PushRecord, now time.Time) (RecordResult, *Conflict) {
	rr := RecordResult{Table: rec.Table, RecordID: rec.RecordID}

	if !ValidTable(rec.Table) {
		rr.Err = fmt.Sprintf("unknown table: %s", rec.Table)
		return rr, nil
	}

	stored, err := getRecord(tx, rec.Table, rec.RecordID, userID)
	if err != nil {
		rr.Err = fmt.Sprintf("load record: %v", err)
		return rr, nil
	}

	if rec.Operation == OpDelete {
		return applyDelete(tx, userID, rec, stored, now)
	}

	if stored == nil {
		return applyInsert(tx, userID, rec, now)
	}
	return applyUpdate(tx, userID, rec, stored, now)
}

// applyDelete soft-deletes a stored record. Deleting a record the server has
// never seen, or has already deleted, is a trivial success: there is nothing
// to conflict with and nothing to change.
func applyDelete(tx *sql.Tx, userID string, rec PushRecord, stored *StoredRecord, now time.Time) (RecordResult, *Conflict) {
	rr := RecordResult{Table: rec.Table, RecordID: rec.RecordID}

	if stored == nil {
		rr.Success = true
		return rr, nil
	}
	if stored.DeletedAt != nil {
		rr.Success = true
		rr.NewVersion = stored.Version
		return rr, nil
	}

	if rec.ClientVersion < stored.Version {
		rr.HasConflict = true
		return rr, &Conflict{
			Table:            rec.Table,
			RecordID:         rec.RecordID,
			ClientVersion:    rec.ClientVersion,
			ServerVersion:    stored.Version,
			ServerData:       stored.Data,
			ClientData:       rec.Data,
			IsDeleteConflict: true,
		}
	}

	newVersion := stored.Version + 1
	query := fmt.Sprintf(
		`UPDATE %s SET deleted_at = ?, updated_at = ?, version = ? WHERE record_id = ? AND user_id = ?`,
		rec.Table,
	)
	if _, err := tx.Exec(query, formatTime(now), formatTime(now), newVersion, rec.RecordID, userID); err != nil {
		rr.Err = fmt.Sprintf("delete record: %v", err)
		return rr, nil
	}
	if err := appendChange(tx, userID, rec.Table, rec.RecordID, OpDelete, newVersion, now); err != nil {
		rr.Err = fmt.Sprintf("log delete: %v", err)
		return rr, nil
	}

	slog.Debug("record deleted", "table", rec.Table, "id", rec.RecordID, "version", newVersion)
	rr.Success = true
	rr.NewVersion = newVersion
	return rr, nil
}

// applyInsert creates a record at version 1. The claimed operation and
// version are irrelevant: a record the server has never seen is an insert.
func applyInsert(tx *sql.Tx, userID string, rec PushRecord, now time.Time) (RecordResult, *Conflict) {
	rr := RecordResult{Table: rec.Table, RecordID: rec.RecordID}

	data, err := CanonicalPayload(rec.Table, rec.Data)
	if err != nil {
		rr.Err = fmt.Sprintf("invalid payload: %v", err)
		return rr, nil
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (record_id, user_id, version, data, created_at, updated_at) VALUES (?, ?, 1, ?, ?, ?)`,
		rec.Table,
	)
	if _, err := tx.Exec(query, rec.RecordID, userID, data, formatTime(now), formatTime(now)); err != nil {
		rr.Err = fmt.Sprintf("insert record: %v", err)
		return rr, nil
	}
	if err := appendChange(tx, userID, rec.Table, rec.RecordID, OpInsert, 1, now); err != nil {
		rr.Err = fmt.Sprintf("log insert: %v", err)
		return rr, nil
	}

	slog.Debug("record inserted", "table", rec.Table, "id", rec.RecordID)
	rr.Success = true
	rr.NewVersion = 1
	return rr, nil
}

// applyUpdate overwrites a stored record when the client's version wins.
// A soft-deleted record refuses updates outright: the tombstone has already
// propagated and resurrecting it server-side would fork the two histories.
func applyUpdate(tx *sql.Tx, userID string, rec PushRecord, stored *StoredRecord, now time.Time) (RecordResult, *Conflict) {
	rr := RecordResult{Table: rec.Table, RecordID: rec.RecordID}

	if stored.DeletedAt != nil || rec.ClientVersion < stored.Version {
		rr.HasConflict = true
		return rr, &Conflict{
			Table:         rec.Table,
			RecordID:      rec.RecordID,
			ClientVersion: rec.ClientVersion,
			ServerVersion: stored.Version,
			ServerData:    stored.Data,
			ClientData:    rec.Data,
		}
	}

	data, err := CanonicalPayload(rec.Table, rec.Data)
	if err != nil {
		rr.Err = fmt.Sprintf("invalid payload: %v", err)
		return rr, nil
	}

	newVersion := stored.Version + 1
	query := fmt.Sprintf(
		`UPDATE %s SET data = ?, version = ?, updated_at = ? WHERE record_id = ? AND user_id = ?`,
		rec.Table,
	)
	if _, err := tx.Exec(query, data, newVersion, formatTime(now), rec.RecordID, userID); err != nil {
		rr.Err = fmt.Sprintf("update record: %v", err)
		return rr, nil
	}
	if err := appendChange(tx, userID, rec.Table, rec.RecordID, OpUpdate, newVersion, now); err != nil {
		rr.Err = fmt.Sprintf("log update: %v", err)
		return rr, nil
	}

	slog.Debug("record updated", "table", rec.Table, "id", rec.RecordID, "version", newVersion)
	rr.Success = true
	rr.NewVersion = newVersion
	return rr, nil
}

// getRecord loads the current state of one record, or nil if absent. The
// table must already have passed ValidTable.
func getRecord(tx *sql.Tx, table, recordID, userID string) (*StoredRecord, error) {
	query := fmt.Sprintf(
		`SELECT record_id, version, data, created_at, updated_at, deleted_at FROM %s WHERE record_id = ? AND user_id = ?`,
		table,
	)

	var rec StoredRecord
	var createdAt, updatedAt string
	var deletedAt sql.NullString
	err := tx.QueryRow(query, recordID, userID).Scan(
		&rec.RecordID, &rec.Version, &rec.Data, &createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, recordID, err)
	}

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, recordID, err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, recordID, err)
	}
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("get %s/%s: %w", table, recordID, err)
		}
		rec.DeletedAt = &t
	}

	return &rec, nil
}
