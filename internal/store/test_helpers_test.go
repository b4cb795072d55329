package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/neko/internal/domain"
)

// createTestStore creates a fresh file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestEvent builds an event ending offset from testNow.
func createTestEvent(id string, offset time.Duration) domain.Event {
	return domain.Event{
		ID:          id,
		Title:       "Giveaway " + id,
		Location:    domain.Location{Channel: "chan-1", Message: "msg-" + id},
		EndTime:     testNow.Add(offset),
		WinnerCount: 1,
	}
}

func mustAddEvent(t *testing.T, s *Store, ev domain.Event) {
	t.Helper()
	if err := s.AddEvent(t.Context(), ev); err != nil {
		t.Fatalf("AddEvent(%s) failed: %v", ev.ID, err)
	}
}

// getTableIndexes returns all index names for a table.
func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to query indexes: %v", err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func domainPatchTitle(title string) domain.EventPatch {
	return domain.EventPatch{Title: &title}
}
