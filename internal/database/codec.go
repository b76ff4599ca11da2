package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

func now() time.Time {
	return time.Now().UTC()
}

// timeLayout keeps a fixed fraction width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// toJSON encodes v for a TEXT column; nil values become SQL NULL.
func toJSON(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

// fromJSON decodes a TEXT column into dest, leaving dest untouched on NULL or bad data.
func fromJSON(s sql.NullString, dest any) {
	if !s.Valid || s.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(s.String), dest)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
