// Package status rotates the bot's presence line based on giveaway activity.
//
// While any giveaway is live the status is "online" with an activity line.
// For 48 hours after a conclusion it is "streaming" and names the first
// winner. Otherwise it is "idle".
package status

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/engine"
)

const (
	// DefaultInterval is the time between status updates.
	DefaultInterval = time.Minute

	// EndedWindow is how long a conclusion stays in the status line.
	EndedWindow = 48 * time.Hour

	// nobody stands in for the winner of a giveaway no one entered.
	nobody = "Nobody"
)

// Mode is the presence mode published with a status line.
type Mode string

const (
	ModeOnline    Mode = "online"
	ModeStreaming Mode = "streaming"
	ModeIdle      Mode = "idle"
)

// Publisher displays a status line.
type Publisher interface {
	SetStatus(ctx context.Context, mode, text string) error
}

// LiveSource reports the currently live giveaways.
type LiveSource interface {
	Live(ctx context.Context) ([]domain.Event, error)
}

// Manager picks and publishes status lines.
//
// Thread-safety: Observe may be called from any goroutine.
type Manager struct {
	cfg      Config
	live     LiveSource
	pub      Publisher
	clock    engine.Clock
	logger   *slog.Logger
	interval time.Duration

	mu         sync.Mutex
	rng        *rand.Rand
	lastEnded  time.Time
	lastWinner string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(c engine.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithInterval sets the time between updates. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithRandSource makes line selection reproducible.
func WithRandSource(src rand.Source) Option {
	return func(m *Manager) {
		m.rng = rand.New(src)
	}
}

// New creates a Manager.
func New(cfg Config, live LiveSource, pub Publisher, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		live:     live,
		pub:      pub,
		clock:    engine.SystemClock{},
		logger:   slog.Default(),
		interval: DefaultInterval,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Observe records a conclusion. Registered as an engine conclude hook.
func (m *Manager) Observe(o domain.Outcome) {
	winner := nobody
	if len(o.Winners) > 0 {
		winner = o.Winners[0]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ConcludedAt.Before(m.lastEnded) {
		return
	}
	m.lastEnded = o.ConcludedAt
	m.lastWinner = winner
}

// Current selects the status line for the present moment.
func (m *Manager) Current(ctx context.Context) (Mode, string, error) {
	live, err := m.live.Live(ctx)
	if err != nil {
		return "", "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(live) > 0 {
		return ModeOnline, m.pick(m.cfg.GiveawayActive), nil
	}
	if !m.lastEnded.IsZero() && m.clock.Now().Sub(m.lastEnded) < EndedWindow {
		line := strings.ReplaceAll(m.pick(m.cfg.GiveawayEnded), "{username}", m.lastWinner)
		return ModeStreaming, line, nil
	}
	return ModeIdle, m.pick(m.cfg.NoGiveaways), nil
}

// pick returns a random line. Caller holds m.mu.
func (m *Manager) pick(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[m.rng.IntN(len(lines))]
}

// Update publishes the current status line.
func (m *Manager) Update(ctx context.Context) error {
	mode, text, err := m.Current(ctx)
	if err != nil {
		return err
	}
	m.logger.Debug("setting status", "mode", mode, "text", text)
	return m.pub.SetStatus(ctx, string(mode), text)
}

// Run publishes immediately and then once per interval until ctx is cancelled.
// Failed updates are logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.Update(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("update status failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
