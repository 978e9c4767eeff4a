package sync

import (
	"encoding/json"
	"fmt"
)

// Typed payloads, one per registry table. A pushed payload is decoded into
// its table's struct and re-marshalled before storage, so the stored form is
// exactly the declared fields: anything else the client sent — including
// echoed system columns like record id, owner, or creation timestamp — is
// dropped on the way in.

// DailyEntry is one journal entry for a calendar day.
type DailyEntry struct {
	EntryDate string `json:"entry_date"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Mood      string `json:"mood,omitempty"`
	Weather   string `json:"weather,omitempty"`
}

// EntryTag attaches a tag to an entry.
type EntryTag struct {
	EntryID string `json:"entry_id"`
	Tag     string `json:"tag"`
}

// MediaAsset is attachment metadata for an entry.
type MediaAsset struct {
	EntryID string `json:"entry_id"`
	Kind    string `json:"kind"`
	URI     string `json:"uri"`
	Caption string `json:"caption,omitempty"`
}

// MoodLog is a standalone mood check-in, not tied to an entry.
type MoodLog struct {
	LoggedAt string `json:"logged_at"`
	Mood     string `json:"mood"`
	Note     string `json:"note,omitempty"`
}

// UserSetting is a single per-user preference.
type UserSetting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CanonicalPayload validates raw against the typed payload for table and
// returns the canonical form to store. The table must already have passed
// ValidTable.
func CanonicalPayload(table string, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: empty payload", table)
	}

	var typed any
	switch table {
	case "daily_entries":
		v := DailyEntry{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s: decode payload: %w", table, err)
		}
		if v.EntryDate == "" {
			return nil, fmt.Errorf("%s: entry_date is required", table)
		}
		typed = v
	case "entry_tags":
		v := EntryTag{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s: decode payload: %w", table, err)
		}
		if v.EntryID == "" || v.Tag == "" {
			return nil, fmt.Errorf("%s: entry_id and tag are required", table)
		}
		typed = v
	case "media_assets":
		v := MediaAsset{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s: decode payload: %w", table, err)
		}
		if v.EntryID == "" || v.Kind == "" || v.URI == "" {
			return nil, fmt.Errorf("%s: entry_id, kind and uri are required", table)
		}
		typed = v
	case "mood_logs":
		v := MoodLog{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s: decode payload: %w", table, err)
		}
		if v.LoggedAt == "" || v.Mood == "" {
			return nil, fmt.Errorf("%s: logged_at and mood are required", table)
		}
		typed = v
	case "user_settings":
		v := UserSetting{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s: decode payload: %w", table, err)
		}
		if v.Key == "" {
			return nil, fmt.Errorf("%s: key is required", table)
		}
		typed = v
	default:
		return nil, fmt.Errorf("%s: %w", table, ErrUnknownTable)
	}

	data, err := json.Marshal(typed)
	if err != nil {
		return nil, fmt.Errorf("%s: encode payload: %w", table, err)
	}
	return data, nil
}
