package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/duration"
	"github.com/roach88/neko/internal/engine"
	"github.com/roach88/neko/internal/recovery"
	"github.com/roach88/neko/internal/store"
	"github.com/roach88/neko/internal/testutil"
)

const (
	// DefaultChannel is used by create steps that name no channel.
	DefaultChannel = "general"

	// settleTimeout bounds how long an advance step waits for timers to fire.
	settleTimeout = 5 * time.Second
)

// Harness drives one scenario against a real engine.
//
// The store is an in-memory SQLite database that doubles as the archive,
// so the final state survives restart steps. The presenter is a
// testutil.Recorder shared by every engine instance.
type Harness struct {
	store  *store.Store
	clock  *testutil.FakeClock
	pres   *testutil.Recorder
	logger *slog.Logger
	seed   uint64
	boots  uint64

	engine *engine.Engine
	loop   *recovery.Loop
	cancel context.CancelFunc
	done   chan error
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// A returned error means the harness itself failed; step and assertion
// failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	seed := scenario.Seed
	if seed == 0 {
		seed = 1
	}
	h := &Harness{
		store:  st,
		clock:  testutil.NewFakeClock(scenario.StartTime()),
		pres:   testutil.NewRecorder(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		seed:   seed,
	}
	h.boot()
	defer h.shutdown()

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Flow {
		ev, err := h.execute(ctx, step)
		if err != nil {
			ev.Error = codeOf(err)
		}
		ev.Action = step.Action
		if ev.Event == "" {
			ev.Event = step.Event
		}
		result.record(ev)

		switch {
		case step.ExpectError != "" && err == nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got none", i, step.Action, step.ExpectError))
		case step.ExpectError != "" && ev.Error != step.ExpectError:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got %s", i, step.Action, step.ExpectError, ev.Error))
		case step.ExpectError == "" && err != nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error: %v", i, step.Action, err))
		}
	}

	final, err := h.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture final state: %w", err)
	}
	result.Final = final

	for _, msg := range EvaluateAssertions(final, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// boot starts a fresh engine and recovery loop on the shared store.
func (h *Harness) boot() {
	h.boots++
	h.engine = engine.New(h.store, h.pres, h.store,
		engine.WithClock(h.clock),
		engine.WithRandSource(rand.NewPCG(h.seed, h.boots)),
		engine.WithLogger(h.logger),
	)
	h.loop = recovery.New(h.store, h.engine, h.pres,
		recovery.WithClock(h.clock),
		recovery.WithLogger(h.logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.engine.Run(ctx) }()
}

// shutdown stops the engine and waits for in-flight conclusions.
func (h *Harness) shutdown() {
	h.engine.Stop()
	<-h.done
	h.cancel()
}

func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	var ev TraceEvent

	switch step.Action {
	case ActionCreate:
		winners := 1
		if step.Winners != nil {
			winners = *step.Winners
		}
		channel := step.Channel
		if channel == "" {
			channel = DefaultChannel
		}
		created, err := h.engine.CreateEvent(ctx, domain.CreateRequest{
			Title:   step.Title,
			Length:  step.Length,
			Channel: channel,
			Winners: winners,
			Image:   step.Image,
		})
		if err != nil {
			return ev, err
		}
		ev.Event = created.ID
		ev.Result = map[string]any{
			"end_time": formatTime(created.EndTime),
			"message":  created.Location.Message,
		}

	case ActionEnter:
		created, err := h.engine.RegisterEntry(ctx, step.Event, step.Participant)
		if err != nil {
			return ev, err
		}
		ev.Result = map[string]any{"participant": step.Participant, "created": created}

	case ActionWithdraw:
		removed, err := h.engine.WithdrawEntry(ctx, step.Event, step.Participant)
		if err != nil {
			return ev, err
		}
		ev.Result = map[string]any{"participant": step.Participant, "removed": removed}

	case ActionConclude:
		out, concluded, err := h.engine.Conclude(ctx, step.Event)
		if err != nil {
			return ev, err
		}
		ev.Result = map[string]any{
			"concluded": concluded,
			"winners":   nonNil(out.Winners),
		}

	case ActionCancel:
		if err := h.engine.Cancel(ctx, step.Event); err != nil {
			return ev, err
		}

	case ActionExtend:
		updated, err := h.engine.Extend(ctx, step.Event, step.Length)
		if err != nil {
			return ev, err
		}
		ev.Result = map[string]any{"end_time": formatTime(updated.EndTime)}

	case ActionAdvance:
		concluded, err := h.advance(ctx, duration.Parse(step.By))
		if err != nil {
			return ev, err
		}
		ev.Result = map[string]any{
			"now":       formatTime(h.clock.Now()),
			"concluded": concluded,
		}

	case ActionGone:
		h.pres.MarkGone(step.Channel)
		ev.Result = map[string]any{"channel": step.Channel}

	case ActionReconcile:
		report, err := h.loop.RunOnce(ctx)
		if err != nil {
			return ev, err
		}
		ev.Result = map[string]any{
			"reloaded":  report.Reloaded,
			"concluded": report.Concluded,
			"discarded": report.Discarded,
			"skipped":   report.Skipped,
		}

	case ActionRestart:
		h.shutdown()
		h.boot()
		stored, err := h.store.ListEvents(ctx)
		if err != nil {
			return ev, err
		}
		ev.Result = map[string]any{"stored": len(stored)}

	default:
		return ev, fmt.Errorf("unknown action %q", step.Action)
	}
	return ev, nil
}

// advance moves the clock and waits until every live event that expired
// has been concluded by the engine's own timer.
func (h *Harness) advance(ctx context.Context, d time.Duration) ([]string, error) {
	live, err := h.engine.Live(ctx)
	if err != nil {
		return nil, err
	}
	now := h.clock.Advance(d)

	due := []string{}
	for _, ev := range live {
		if ev.Expired(now) {
			due = append(due, ev.ID)
		}
	}
	slices.Sort(due)

	deadline := time.Now().Add(settleTimeout)
	for {
		pending, err := h.pending(ctx, due)
		if err != nil {
			return nil, err
		}
		if !pending {
			return due, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("advance: expired events not concluded within %s", settleTimeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// pending reports whether any of ids is still live or stored. Each Live
// call also wakes the engine loop so it re-arms its timer.
func (h *Harness) pending(ctx context.Context, ids []string) (bool, error) {
	live, err := h.engine.Live(ctx)
	if err != nil {
		return false, err
	}
	for _, ev := range live {
		if slices.Contains(ids, ev.ID) {
			return true, nil
		}
	}
	for _, id := range ids {
		_, err := h.store.GetEvent(ctx, id)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return false, err
		}
	}
	return false, nil
}

// snapshot captures the final state. Lists are sorted so the result does
// not depend on goroutine scheduling of timer-driven conclusions.
func (h *Harness) snapshot(ctx context.Context) (FinalState, error) {
	final := FinalState{
		Live:          []string{},
		Stored:        []string{},
		Archived:      []ArchiveSummary{},
		Announcements: []string{},
	}

	live, err := h.engine.Live(ctx)
	if err != nil {
		return final, err
	}
	for _, ev := range live {
		final.Live = append(final.Live, ev.ID)
	}

	stored, err := h.store.ListEvents(ctx)
	if err != nil {
		return final, err
	}
	for _, ev := range stored {
		final.Stored = append(final.Stored, ev.ID)
	}
	slices.Sort(final.Stored)

	records, err := h.store.ListRecords(ctx)
	if err != nil {
		return final, err
	}
	for _, rec := range records {
		final.Archived = append(final.Archived, ArchiveSummary{
			Event:    rec.EventID,
			Entrants: nonNil(rec.Entrants),
			Winners:  nonNil(rec.Winners),
		})
	}
	slices.SortFunc(final.Archived, func(a, b ArchiveSummary) int {
		switch {
		case a.Event < b.Event:
			return -1
		case a.Event > b.Event:
			return 1
		}
		return 0
	})

	final.Announcements = append(final.Announcements, h.pres.Announcements()...)
	slices.Sort(final.Announcements)

	return final, nil
}

// codeOf renders an error for the trace: the engine code when there is one.
func codeOf(err error) string {
	if code := engine.CodeOf(err); code != "" {
		return string(code)
	}
	if errors.Is(err, engine.ErrStopped) {
		return "STOPPED"
	}
	return err.Error()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
