package sync

import "sort"

// syncedTables is the closed allow-list of tables the engine will read or
// write. Table names from request bodies and change-log rows are checked
// against this set before they are ever used to build a query; adding a table
// requires a registry entry plus DDL in schema.go, never runtime config.
var syncedTables = map[string]bool{
	"daily_entries": true,
	"entry_tags":    true,
	"media_assets":  true,
	"mood_logs":     true,
	"user_settings": true,
}

// ValidTable reports whether name is in the sync registry.
func ValidTable(name string) bool {
	return syncedTables[name]
}

// Tables returns the registry table names in sorted order.
func Tables() []string {
	names := make([]string, 0, len(syncedTables))
	for name := range syncedTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
