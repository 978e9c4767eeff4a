package sync

import (
	"database/sql"
	"fmt"
	"time"
)

// sqlTime is a fixed-width UTC timestamp format. Fixed width keeps
// lexicographic order identical to chronological order, so changed_at
// comparisons in SQL work on the stored text directly.
const sqlTime = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqlTime)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqlTime, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// InitSchema creates the syncable tables and the change log if they do not
// exist. Every syncable table shares the same system columns; the
// table-specific payload lives in the data column as its typed JSON form.
func InitSchema(db *sql.DB) error {
	for _, table := range Tables() {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %[1]s (
				record_id  TEXT NOT NULL,
				user_id    TEXT NOT NULL,
				version    INTEGER NOT NULL DEFAULT 1,
				data       JSON NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				deleted_at TEXT,
				PRIMARY KEY (record_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_%[1]s_user ON %[1]s(user_id);
		`, table)
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS change_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			table_name TEXT NOT NULL,
			record_id  TEXT NOT NULL,
			operation  TEXT NOT NULL CHECK(operation IN ('INSERT','UPDATE','DELETE')),
			version    INTEGER NOT NULL,
			changed_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_change_log_user_time ON change_log(user_id, changed_at);
		CREATE INDEX IF NOT EXISTS idx_change_log_record ON change_log(table_name, record_id, changed_at);
	`)
	if err != nil {
		return fmt.Errorf("create change_log: %w", err)
	}
	return nil
}
