package sync

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// GetRecordData returns the current payload of one record, or nil if the
// record is absent. The table name is checked against the registry before
// any query is built; an unknown table here means the caller fed us a name
// that never came from the registry, so it fails loudly rather than
// returning a retryable error.
func GetRecordData(tx *sql.Tx, table, recordID, userID string) (json.RawMessage, error) {
	if !ValidTable(table) {
		return nil, fmt.Errorf("%s: %w", table, ErrUnknownTable)
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE record_id = ? AND user_id = ?`, table)
	var data json.RawMessage
	err := tx.QueryRow(query, recordID, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get data %s/%s: %w", table, recordID, err)
	}
	return data, nil
}
