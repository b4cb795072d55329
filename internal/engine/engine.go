package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/neko/internal/domain"
)

// Store is the durable state the engine reads and writes.
// Implemented by store.Store (SQLite) and pgstore.Store (PostgreSQL).
type Store interface {
	Sequencer
	AddEvent(ctx context.Context, ev domain.Event) error
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	UpdateEvent(ctx context.Context, id string, patch domain.EventPatch) (domain.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	AddEntry(ctx context.Context, eventID, participantID string) (bool, error)
	RemoveEntry(ctx context.Context, eventID, participantID string) (bool, error)
	ListEntries(ctx context.Context, eventID string) ([]string, error)
	CountEntries(ctx context.Context, eventID string) (int, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// Presenter renders events for users. Calls are best effort once durable
// state has been committed.
type Presenter interface {
	Present(ctx context.Context, loc domain.Location, snap domain.Snapshot) (string, error)
	Refresh(ctx context.Context, loc domain.Location, snap domain.Snapshot) error
	Finish(ctx context.Context, loc domain.Location, snap domain.Snapshot) error
	Announce(ctx context.Context, loc domain.Location, text string) error
}

// Archiver receives one append-only record per concluded event.
type Archiver interface {
	WriteRecord(ctx context.Context, rec domain.ArchiveRecord) error
}

const (
	// DefaultEffectTimeout bounds presentation and archival after a timer fires.
	DefaultEffectTimeout = 30 * time.Second

	// claimRetryDelay re-arms a deadline whose conclusion could not read entrants.
	claimRetryDelay = 30 * time.Second
)

// Engine owns the live registry of scheduled giveaways.
//
// CRITICAL: All registry mutations happen on the single Run goroutine.
// Public operations submit a command and wait for it, so callers on any
// goroutine observe a strictly serialized registry.
//
// Thread-safety model:
//   - CreateEvent, RegisterEntry, Conclude, ...: safe from any goroutine
//   - ListEvent, ListAllEvents: read the store directly, never the registry
//   - Run(): must be called from exactly one goroutine
//
// INVARIANTS:
//   - every registry key exists in the store with the same end_time
//   - an id is in at most one of registry and concluding
//   - the schedule holds a deadline only for registry keys
type Engine struct {
	store     Store
	presenter Presenter
	archiver  Archiver
	clock     Clock
	ids       IDGenerator
	rng       *rand.Rand
	logger    *slog.Logger

	strictDurations bool
	refreshInterval time.Duration
	effectTimeout   time.Duration
	hooks           []func(domain.Outcome)

	queue *commandQueue

	// Owned by the Run goroutine.
	registry   map[string]domain.Event
	concluding map[string]struct{}
	schedule   *schedule
	timer      *time.Timer

	refreshing atomic.Bool
	effects    sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator replaces the store-backed id sequence.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithRandSource makes winner draws reproducible.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) {
		e.rng = rand.New(src)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStrictDurations rejects duration specs containing anything but tokens.
func WithStrictDurations(strict bool) Option {
	return func(e *Engine) {
		e.strictDurations = strict
	}
}

// WithRefreshInterval re-renders time remaining for every live event at the
// given interval. Zero disables refreshing.
func WithRefreshInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.refreshInterval = d
	}
}

// WithEffectTimeout bounds side effects run after a timer fires.
func WithEffectTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.effectTimeout = d
	}
}

// WithConcludeHook registers fn to observe every completed conclusion.
// Hooks run outside the Run goroutine and must be safe for concurrent use.
func WithConcludeHook(fn func(domain.Outcome)) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, fn)
	}
}

// New creates an Engine. Call Run to start processing.
func New(s Store, p Presenter, a Archiver, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		presenter:     p,
		archiver:      a,
		clock:         SystemClock{},
		logger:        slog.Default(),
		effectTimeout: DefaultEffectTimeout,
		queue:         newCommandQueue(),
		registry:      make(map[string]domain.Event),
		concluding:    make(map[string]struct{}),
		schedule:      newSchedule(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.ids == nil {
		e.ids = NewSequenceIDs(s)
	}
	if e.rng == nil {
		e.rng = newSeededRand()
	}

	return e
}

// Run starts the single-writer loop.
// Blocks until ctx is cancelled or Stop() is called.
//
// Side effects of timer-driven conclusions run on their own goroutines;
// Run waits for them before returning.
//
// ERROR HANDLING: a failed conclusion is logged and the loop continues.
// Durable state remains the source of truth and the recovery loop retries.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	e.timer = time.NewTimer(time.Hour)
	e.timer.Stop()
	defer e.timer.Stop()

	var refresh <-chan time.Time
	if e.refreshInterval > 0 {
		ticker := time.NewTicker(e.refreshInterval)
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		if cmd, ok := e.queue.TryDequeue(); ok {
			cmd()
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drain()
			e.effects.Wait()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed,
			// so this fires repeatedly until the backlog is drained.
			if e.queue.Drained() {
				e.logger.Info("engine stopping: queue closed")
				e.effects.Wait()
				return nil
			}

		case <-e.nextWake():
			e.fireDue(ctx)

		case <-refresh:
			e.refreshAll(ctx)
		}
	}
}

// Stop gracefully shuts down the engine.
// Commands already queued still run; later submissions fail with ErrStopped.
func (e *Engine) Stop() {
	e.queue.Close()
}

// drain runs commands left in a closed queue so their callers are released.
func (e *Engine) drain() {
	for {
		cmd, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		cmd()
	}
}

// nextWake arms the timer for the earliest deadline. A nil channel blocks
// forever in select, which is what an empty schedule needs.
func (e *Engine) nextWake() <-chan time.Time {
	due, ok := e.schedule.Peek()
	if !ok {
		e.timer.Stop()
		return nil
	}
	e.timer.Reset(max(due.Sub(e.clock.Now()), 0))
	return e.timer.C
}

// call runs fn on the Run goroutine and waits for it to finish.
func (e *Engine) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !e.queue.Enqueue(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// effectContext detaches side effects from loop cancellation but bounds them.
func (e *Engine) effectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.effectTimeout)
}

// snapshot renders the presentation view of a scheduled event.
func (e *Engine) snapshot(ev domain.Event, status domain.Status) domain.Snapshot {
	return domain.Snapshot{
		Event:     ev,
		Status:    status,
		Remaining: max(ev.EndTime.Sub(e.clock.Now()), 0),
	}
}

// Live returns the registry contents, soonest deadline first.
func (e *Engine) Live(ctx context.Context) ([]domain.Event, error) {
	var live []domain.Event
	err := e.call(ctx, func() {
		live = make([]domain.Event, 0, len(e.registry))
		for _, ev := range e.registry {
			live = append(live, ev)
		}
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(live, func(a, b domain.Event) int {
		if c := a.EndTime.Compare(b.EndTime); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return live, nil
}
