package sync

import (
	"sort"
	"testing"
)

func TestValidTable(t *testing.T) {
	for _, name := range Tables() {
		if !ValidTable(name) {
			t.Errorf("registry table %q rejected", name)
		}
	}

	for _, name := range []string{"", "users", "api_keys", "change_log", "daily_entries; DROP TABLE users", "DAILY_ENTRIES"} {
		if ValidTable(name) {
			t.Errorf("non-registry table %q accepted", name)
		}
	}
}

func TestTables_Sorted(t *testing.T) {
	names := Tables()
	if len(names) == 0 {
		t.Fatal("empty registry")
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("tables not sorted: %v", names)
	}
}
