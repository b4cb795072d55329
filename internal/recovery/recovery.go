// Package recovery reconciles the engine's live registry with durable state.
//
// A pass runs at startup and then on a fixed interval. Stored events missing
// from the registry are reloaded; events whose presentation can no longer be
// resolved are discarded; events that expired while the process was down are
// concluded. Every change goes through the engine, which stays the single
// writer of its registry.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/engine"
	"github.com/roach88/neko/internal/present"
)

// DefaultInterval is the time between reconciliation passes.
const DefaultInterval = 5 * time.Minute

// Store lists stored events by deadline.
type Store interface {
	ListActiveEvents(ctx context.Context, now time.Time) ([]domain.Event, error)
	ListExpiredEvents(ctx context.Context, now time.Time) ([]domain.Event, error)
}

// Engine is the subset of engine.Engine the loop drives. Reload and
// ConcludeStored re-read the stored row, so listings may be stale.
type Engine interface {
	Live(ctx context.Context) ([]domain.Event, error)
	Reload(ctx context.Context, ev domain.Event) (bool, error)
	ConcludeStored(ctx context.Context, eventID string) (domain.Outcome, bool, error)
	Discard(ctx context.Context, eventID string) (bool, error)
}

// Resolver checks that an event's presentation still exists.
// It returns present.ErrGone when the location was deleted.
type Resolver interface {
	Resolve(ctx context.Context, loc domain.Location) error
}

// Report summarizes one reconciliation pass.
type Report struct {
	Reloaded  int
	Concluded int
	Discarded int
	Skipped   int
}

// Loop runs reconciliation passes.
type Loop struct {
	store    Store
	engine   Engine
	resolver Resolver
	interval time.Duration
	clock    engine.Clock
	logger   *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithInterval sets the time between passes. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithClock replaces the wall clock used to split active from expired events.
func WithClock(c engine.Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = lg
	}
}

// New creates a Loop.
func New(s Store, e Engine, r Resolver, opts ...Option) *Loop {
	l := &Loop{
		store:    s,
		engine:   e,
		resolver: r,
		interval: DefaultInterval,
		clock:    engine.SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run performs a pass immediately and then once per interval until ctx is
// cancelled. Failed passes are logged and retried on the next tick.
func (l *Loop) Run(ctx context.Context) error {
	l.pass(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.pass(ctx)
		}
	}
}

func (l *Loop) pass(ctx context.Context) {
	report, err := l.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Error("reconciliation failed", "error", err)
		}
		return
	}
	l.logger.Info("reconciliation complete",
		"reloaded", report.Reloaded,
		"concluded", report.Concluded,
		"discarded", report.Discarded,
		"skipped", report.Skipped,
	)
}

// RunOnce performs a single reconciliation pass.
//
// Errors for individual events are logged and counted as skipped; only a
// failure to list stored or live events aborts the pass.
func (l *Loop) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	now := l.clock.Now()

	live, err := l.engine.Live(ctx)
	if err != nil {
		return report, fmt.Errorf("list live events: %w", err)
	}
	known := make(map[string]bool, len(live))
	for _, ev := range live {
		known[ev.ID] = true
	}

	active, err := l.store.ListActiveEvents(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list active events: %w", err)
	}
	for _, ev := range active {
		if known[ev.ID] {
			continue
		}
		l.restore(ctx, ev, &report)
	}

	expired, err := l.store.ListExpiredEvents(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list expired events: %w", err)
	}
	for _, ev := range expired {
		l.conclude(ctx, ev, &report)
	}

	return report, nil
}

// restore reattaches a stored event that the registry lost.
func (l *Loop) restore(ctx context.Context, ev domain.Event, report *Report) {
	log := l.logger.With("event", ev.ID)

	if err := l.resolver.Resolve(ctx, ev.Location); err != nil {
		if !errors.Is(err, present.ErrGone) {
			log.Warn("resolve presentation failed, retrying next pass", "error", err)
			report.Skipped++
			return
		}
		discarded, err := l.engine.Discard(ctx, ev.ID)
		if err != nil {
			log.Error("discard unrecoverable event failed", "error", err)
			report.Skipped++
			return
		}
		if discarded {
			log.Warn("presentation gone, event removed", "channel", ev.Location.Channel)
			report.Discarded++
		}
		return
	}

	loaded, err := l.engine.Reload(ctx, ev)
	if err != nil {
		log.Error("reload event failed", "error", err)
		report.Skipped++
		return
	}
	if loaded {
		report.Reloaded++
	}
}

// conclude finishes an event whose deadline passed while nothing was armed.
// The engine re-reads the row, so an event concluded since the listing is
// skipped.
func (l *Loop) conclude(ctx context.Context, ev domain.Event, report *Report) {
	log := l.logger.With("event", ev.ID)

	_, concluded, err := l.engine.ConcludeStored(ctx, ev.ID)
	if err != nil {
		log.Error("conclude expired event failed", "error", err)
		report.Skipped++
		return
	}
	if concluded {
		log.Info("expired event concluded during reconciliation")
		report.Concluded++
	}
}
