package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/neko/internal/config"
	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/store"
)

var queryNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seedStore creates a database with two live events, entrants and one
// archive record, and points the config away from any real environment.
func seedStore(t *testing.T) string {
	t.Helper()
	t.Setenv("NEKO_ENV", "production")
	t.Setenv("NEKO_DATABASE_URL", "")

	path := filepath.Join(t.TempDir(), "neko.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := t.Context()
	for _, ev := range []domain.Event{
		{
			ID: "N001-2026", Title: "Cat food", WinnerCount: 1,
			Location: domain.Location{Channel: "general", Message: "m1"},
			EndTime:  queryNow.Add(90 * time.Minute),
		},
		{
			ID: "N002-2026", Title: "Scratching post", WinnerCount: 2,
			Location: domain.Location{Channel: "lounge", Message: "m2"},
			EndTime:  queryNow.Add(26 * time.Hour),
			Image:    "https://example.com/post.png",
		},
	} {
		require.NoError(t, s.AddEvent(ctx, ev))
	}
	for _, p := range []string{"alice", "bob"} {
		_, err := s.AddEntry(ctx, "N001-2026", p)
		require.NoError(t, err)
	}

	require.NoError(t, s.WriteRecord(ctx, domain.ArchiveRecord{
		EventID:     "N000-2026",
		Title:       "Yarn",
		Location:    domain.Location{Channel: "general", Message: "m0"},
		EndTime:     queryNow.Add(-time.Hour),
		WinnerCount: 1,
		Entrants:    []string{"carol", "dave"},
		Winners:     []string{"dave"},
		ConcludedAt: queryNow.Add(-time.Hour),
	}))
	return path
}

func runQuery(t *testing.T, build func(*QueryOptions) *cobra.Command, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := build(&QueryOptions{
		RootOptions: &RootOptions{Format: format},
		now:         func() time.Time { return queryNow },
	})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestList_Text(t *testing.T) {
	db := seedStore(t)

	out, err := runQuery(t, newListCommand, "text", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "N001-2026")
	assert.Contains(t, out, "Scratching post")
	assert.Contains(t, out, "0d 1h 30m 0s")
	assert.Contains(t, out, "1d 2h 0m 0s")
	// Latest deadline first.
	assert.Less(t, bytes.Index([]byte(out), []byte("N002-2026")), bytes.Index([]byte(out), []byte("N001-2026")))
}

func TestList_JSON(t *testing.T) {
	db := seedStore(t)

	out, err := runQuery(t, newListCommand, "json", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   []domain.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "N002-2026", resp.Data[0].ID)
}

func TestList_Empty(t *testing.T) {
	t.Setenv("NEKO_ENV", "production")
	t.Setenv("NEKO_DATABASE_URL", "")
	db := filepath.Join(t.TempDir(), "nested", "empty.db")

	out, err := runQuery(t, newListCommand, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No giveaways found.")
}

func TestView(t *testing.T) {
	db := seedStore(t)

	out, err := runQuery(t, newViewCommand, "text", "--db", db, "N001-2026")
	require.NoError(t, err)
	assert.Contains(t, out, "Giveaway ID: N001-2026")
	assert.Contains(t, out, "Entrants: 2")
	assert.Contains(t, out, "Time Remaining: 0d 1h 30m 0s")
	assert.NotContains(t, out, "Image:")

	out, err = runQuery(t, newViewCommand, "text", "--db", db, "N002-2026")
	require.NoError(t, err)
	assert.Contains(t, out, "Image: https://example.com/post.png")
}

func TestView_NotFound(t *testing.T) {
	db := seedStore(t)

	out, err := runQuery(t, newViewCommand, "text", "--db", db, "N404-2026")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Giveaway not found.")
}

func TestArchive_List(t *testing.T) {
	db := seedStore(t)

	out, err := runQuery(t, newArchiveCommand, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "N000-2026")
	assert.Contains(t, out, "Yarn")
	assert.Contains(t, out, "dave")
}

func TestArchive_Show(t *testing.T) {
	db := seedStore(t)

	out, err := runQuery(t, newArchiveCommand, "text", "--db", db, "N000-2026")
	require.NoError(t, err)
	assert.Contains(t, out, "Participants:\n- carol\n- dave\n")
	assert.Contains(t, out, "Winners: dave")

	out, err = runQuery(t, newArchiveCommand, "json", "--db", db, "N000-2026")
	require.NoError(t, err)
	var resp struct {
		Data domain.ArchiveRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"dave"}, resp.Data.Winners)
}

func TestArchive_ShowNotFound(t *testing.T) {
	db := seedStore(t)

	out, err := runQuery(t, newArchiveCommand, "json", "--db", db, "N001-2026")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestStoreOptions_Apply(t *testing.T) {
	base := config.Config{DBPath: "data/neko.db", DatabaseURL: "postgres://env"}

	tests := []struct {
		name     string
		opts     StoreOptions
		wantPath string
		wantURL  string
	}{
		{"no flags keep config", StoreOptions{}, "data/neko.db", "postgres://env"},
		{"db flag selects sqlite", StoreOptions{Database: "x.db"}, "x.db", ""},
		{"url flag wins", StoreOptions{Database: "x.db", DatabaseURL: "postgres://flag"}, "x.db", "postgres://flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.opts.apply(&cfg)
			assert.Equal(t, tt.wantPath, cfg.DBPath)
			assert.Equal(t, tt.wantURL, cfg.DatabaseURL)
		})
	}
}
