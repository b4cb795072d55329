package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/store"
)

// openTestStore connects to NEKO_TEST_DATABASE_URL and starts from empty tables.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("NEKO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("NEKO_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE entries, events, id_sequences, archives`)
	require.NoError(t, err)
	return s
}

func TestLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seq, err := s.NextEventSeq(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	ev := domain.Event{
		ID:          "N001-2026",
		Title:       "Launch",
		Location:    domain.Location{Channel: "c1", Message: "m1"},
		EndTime:     now.Add(time.Hour),
		WinnerCount: 2,
	}
	require.NoError(t, s.AddEvent(ctx, ev))
	assert.ErrorIs(t, s.AddEvent(ctx, ev), store.ErrDuplicate)

	created, err := s.AddEntry(ctx, ev.ID, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.AddEntry(ctx, ev.ID, "alice")
	require.NoError(t, err)
	assert.False(t, created)
	_, err = s.AddEntry(ctx, "N404-2026", "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)

	active, err := s.ListActiveEvents(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, ev, active[0])

	earlier := ev.EndTime.Add(-time.Minute)
	_, err = s.UpdateEvent(ctx, ev.ID, domain.EventPatch{EndTime: &earlier})
	assert.ErrorIs(t, err, store.ErrEndTimeDecrease)

	require.NoError(t, s.WriteRecord(ctx, domain.NewArchiveRecord(ev, []string{"alice"}, []string{"alice"}, now)))
	rec, err := s.ReadRecord(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, rec.Winners)

	require.NoError(t, s.DeleteEvent(ctx, ev.ID))
	assert.ErrorIs(t, s.DeleteEvent(ctx, ev.ID), store.ErrNotFound)

	seq, err = s.NextEventSeq(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 2, seq, "sequence is not reused after delete")
}
