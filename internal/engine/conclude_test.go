package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/present"
	"github.com/roach88/neko/internal/store"
)

func TestConclude_DrawsAnnouncesArchivesDeletes(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Prize", "1h", 3)
	entrants := []string{"alice", "bob", "carol", "dave", "erin"}
	f.enter(t, ev.ID, entrants...)

	out, concluded, err := f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)
	require.True(t, concluded)

	assert.Equal(t, ev.ID, out.EventID)
	assert.Equal(t, entrants, out.Entrants)
	require.Len(t, out.Winners, 3)
	assert.Subset(t, entrants, out.Winners)
	assertRegistrationOrder(t, entrants, out.Winners)

	assert.Equal(t, []string{present.WinnersText(out.Winners)}, f.pres.Announcements())

	finishes := f.pres.CallsOf("Finish")
	require.Len(t, finishes, 1)
	assert.Equal(t, domain.StatusEnded, finishes[0].Status)
	assert.Equal(t, out.Winners, finishes[0].Winners)

	records := f.archive.Records()
	require.Len(t, records, 1)
	assert.Equal(t, ev.ID, records[0].EventID)
	assert.Equal(t, entrants, records[0].Entrants)
	assert.Equal(t, out.Winners, records[0].Winners)
	assert.Equal(t, testStart, records[0].ConcludedAt)

	_, err = f.store.GetEvent(t.Context(), ev.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	n, err := f.store.CountEntries(t.Context(), ev.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConclude_FewerEntrantsThanWinners(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Prize", "1h", 5)
	f.enter(t, ev.ID, "alice", "bob")

	out, _, err := f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, out.Winners)
}

func TestConclude_NoEntrants(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Prize", "1h", 1)

	out, concluded, err := f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)
	require.True(t, concluded)
	assert.Empty(t, out.Winners)

	assert.Equal(t, []string{present.NoEntrantsText}, f.pres.Announcements())

	records := f.archive.Records()
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].Entrants)
	assert.Empty(t, records[0].Entrants)
	assert.NotNil(t, records[0].Winners)
	assert.Empty(t, records[0].Winners)
}

func TestConclude_Twice(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Prize", "1h", 1)
	f.enter(t, ev.ID, "alice")

	_, concluded, err := f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)
	assert.True(t, concluded)

	out, concluded, err := f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)
	assert.False(t, concluded)
	assert.Empty(t, out.EventID)

	assert.Len(t, f.archive.Records(), 1)
	assert.Len(t, f.pres.Announcements(), 1)
}

func TestConclude_Concurrent(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Prize", "1h", 1)
	f.enter(t, ev.ID, "alice", "bob")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		calls = 8
	)
	for range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, concluded, err := f.eng.Conclude(t.Context(), ev.ID)
			assert.NoError(t, err)
			if concluded {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one caller performs the conclusion")
	assert.Len(t, f.archive.Records(), 1)
}

func TestConclude_UnknownEvent(t *testing.T) {
	f := newFixture(t)

	_, concluded, err := f.eng.Conclude(t.Context(), "N404-2026")
	require.NoError(t, err)
	assert.False(t, concluded)
	assert.Empty(t, f.pres.Calls())
}

func TestConclude_EntrantReadFailureLeavesEventLive(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Prize", "1h", 1)
	f.enter(t, ev.ID, "alice")

	f.store.set(func(s *faultyStore) { s.listEntriesErr = errors.New("disk I/O error") })
	_, concluded, err := f.eng.Conclude(t.Context(), ev.ID)
	require.Error(t, err)
	assert.True(t, IsStorage(err))
	assert.False(t, concluded)

	// Still live: entries are accepted and a later conclusion succeeds.
	created, err := f.eng.RegisterEntry(t.Context(), ev.ID, "bob")
	require.NoError(t, err)
	assert.True(t, created)

	f.store.set(func(s *faultyStore) { s.listEntriesErr = nil })
	out, concluded, err := f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)
	assert.True(t, concluded)
	assert.Equal(t, []string{"alice", "bob"}, out.Entrants)
}

func TestConclude_AnnouncementFailureStillArchivesAndDeletes(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Prize", "1h", 1)
	f.enter(t, ev.ID, "alice")
	f.pres.FailOn("Announce", errors.New("channel deleted"))
	f.pres.FailOn("Finish", errors.New("message deleted"))

	_, concluded, err := f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)
	assert.True(t, concluded)

	assert.Len(t, f.archive.Records(), 1)
	_, err = f.store.GetEvent(t.Context(), ev.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConclude_ArchiveFailureIsNotReturned(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Prize", "1h", 1)
	f.archive.FailWith(errors.New("read-only filesystem"))

	_, concluded, err := f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)
	assert.True(t, concluded)
	assert.Len(t, f.pres.Announcements(), 1, "announcement is not reversed")

	live, err := f.eng.Live(t.Context())
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestConclude_DeleteFailureAllowsRetry(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, "Prize", "1h", 1)
	f.enter(t, ev.ID, "alice")

	f.store.set(func(s *faultyStore) { s.deleteErr = errors.New("database is locked") })
	_, concluded, err := f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)
	require.True(t, concluded)

	stored, err := f.store.GetEvent(t.Context(), ev.ID)
	require.NoError(t, err, "row survives the failed delete")

	loaded, err := f.eng.Reload(t.Context(), stored)
	require.NoError(t, err)
	require.True(t, loaded, "released after conclusion")

	f.store.set(func(s *faultyStore) { s.deleteErr = nil })
	_, concluded, err = f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)
	assert.True(t, concluded)

	assert.Len(t, f.archive.Records(), 1, "archival is idempotent")
	assert.Len(t, f.pres.Announcements(), 2, "announcement is at-least-once")
	_, err = f.store.GetEvent(t.Context(), ev.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConclude_Hooks(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []domain.Outcome
	)
	f := newFixture(t, WithConcludeHook(func(o domain.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, o)
	}))
	ev := f.create(t, "Prize", "1h", 1)
	f.enter(t, ev.ID, "alice")

	out, _, err := f.eng.Conclude(t.Context(), ev.ID)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, out, seen[0])
	assert.Equal(t, "Prize", seen[0].Title)
}

func assertRegistrationOrder(t *testing.T, entrants, winners []string) {
	t.Helper()
	pos := make(map[string]int, len(entrants))
	for i, e := range entrants {
		pos[e] = i
	}
	for i := 1; i < len(winners); i++ {
		assert.Less(t, pos[winners[i-1]], pos[winners[i]], "winners out of registration order: %v", winners)
	}
}
