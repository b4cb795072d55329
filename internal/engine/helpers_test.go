package engine

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/store"
	"github.com/roach88/neko/internal/testutil"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fixture wires an engine to a real SQLite store and recording adapters.
type fixture struct {
	store   *faultyStore
	clock   *testutil.FakeClock
	pres    *testutil.Recorder
	archive *testutil.MemoryArchive
	eng     *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureOn(t, &faultyStore{Store: setupTestStore(t)}, opts...)
}

func newFixtureOn(t *testing.T, s *faultyStore, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:   s,
		clock:   testutil.NewFakeClock(testStart),
		pres:    testutil.NewRecorder(),
		archive: testutil.NewMemoryArchive(),
	}
	base := []Option{
		WithClock(f.clock),
		WithRandSource(rand.NewPCG(1, 2)),
	}
	f.eng = New(f.store, f.pres, f.archive, append(base, opts...)...)
	startEngine(t, f.eng)
	return f
}

func startEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
	})
}

func (f *fixture) create(t *testing.T, title, length string, winners int) domain.Event {
	t.Helper()
	ev, err := f.eng.CreateEvent(t.Context(), domain.CreateRequest{
		Title:   title,
		Length:  length,
		Channel: "general",
		Winners: winners,
	})
	require.NoError(t, err)
	return ev
}

func (f *fixture) enter(t *testing.T, eventID string, participants ...string) {
	t.Helper()
	for _, p := range participants {
		_, err := f.eng.RegisterEntry(t.Context(), eventID, p)
		require.NoError(t, err)
	}
}

// faultyStore injects errors into selected store calls.
type faultyStore struct {
	*store.Store

	mu             sync.Mutex
	listEntriesErr error
	deleteErr      error
	addEventErr    error
}

func (s *faultyStore) set(fn func(s *faultyStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *faultyStore) ListEntries(ctx context.Context, eventID string) ([]string, error) {
	s.mu.Lock()
	err := s.listEntriesErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.ListEntries(ctx, eventID)
}

func (s *faultyStore) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.DeleteEvent(ctx, id)
}

func (s *faultyStore) AddEvent(ctx context.Context, ev domain.Event) error {
	s.mu.Lock()
	err := s.addEventErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.AddEvent(ctx, ev)
}

// gatedPresenter holds the next Present call until release is closed.
type gatedPresenter struct {
	*testutil.Recorder

	mu      sync.Mutex
	release chan struct{}
	entered chan struct{}
}

// hold makes the next Present block. entered is closed once it has started.
func (p *gatedPresenter) hold() (entered, release chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entered = make(chan struct{})
	p.release = make(chan struct{})
	return p.entered, p.release
}

func (p *gatedPresenter) Present(ctx context.Context, loc domain.Location, snap domain.Snapshot) (string, error) {
	p.mu.Lock()
	entered, release := p.entered, p.release
	p.entered, p.release = nil, nil
	p.mu.Unlock()

	if release != nil {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.Recorder.Present(ctx, loc, snap)
}
