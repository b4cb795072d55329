package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// marshalList serializes a participant list for the archives table.
// A nil list is stored as "[]" so reads never see NULL-ish values.
func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return string(data), nil
}

func unmarshalList(data string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

func toUnix(t time.Time) int64 {
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func yearPattern(year int) string {
	return fmt.Sprintf("%%-%d", year)
}
