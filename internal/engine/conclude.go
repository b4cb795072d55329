package engine

import (
	"context"
	"errors"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/present"
	"github.com/roach88/neko/internal/store"
)

// conclusion is an event that has been claimed and drawn but whose side
// effects have not run yet.
type conclusion struct {
	event    domain.Event
	entrants []string
	winners  []string
}

// Conclude draws winners for a live event, announces them, archives the
// result and deletes the event.
//
// Idempotent: if eventID is not live (never existed, already concluded or
// being concluded right now) it returns concluded=false and does nothing.
//
// The claim, entrant read and draw happen in one loop step, so no entry can
// be accepted after the draw. Announcement, archival and deletion follow on
// the caller's goroutine; their failures are logged, not returned.
func (e *Engine) Conclude(ctx context.Context, eventID string) (domain.Outcome, bool, error) {
	return e.conclude(ctx, eventID, func() (*conclusion, error) {
		return e.claim(ctx, eventID)
	})
}

// ConcludeStored concludes an event whose stored deadline has passed while
// the registry did not hold it, such as after a restart.
//
// The store row is re-read and claimed in one loop step: an event concluded
// or cancelled since the caller listed it is left alone, and an expired
// event is never visible as live. A live event is concluded only if its
// deadline has passed; a stored row that is not yet due is loaded instead.
func (e *Engine) ConcludeStored(ctx context.Context, eventID string) (domain.Outcome, bool, error) {
	return e.conclude(ctx, eventID, func() (*conclusion, error) {
		return e.claimStored(ctx, eventID)
	})
}

// conclude runs claimFn on the loop and, if it claimed an event, performs
// the side effects on the caller's goroutine.
func (e *Engine) conclude(ctx context.Context, eventID string, claimFn func() (*conclusion, error)) (domain.Outcome, bool, error) {
	var (
		c     *conclusion
		opErr error
	)
	if err := e.call(ctx, func() { c, opErr = claimFn() }); err != nil {
		return domain.Outcome{}, false, err
	}
	if opErr != nil {
		return domain.Outcome{}, false, opErr
	}
	if c == nil {
		return domain.Outcome{}, false, nil
	}

	outcome := e.finish(ctx, c)
	if err := e.call(ctx, func() { e.release(eventID) }); err != nil {
		e.logger.Warn("release concluded event", "event", eventID, "error", err)
	}
	return outcome, true, nil
}

// claim removes a live event from the registry and draws its winners.
// Returns nil when there is nothing to conclude. On a storage error the
// registry is left unchanged.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) claim(ctx context.Context, id string) (*conclusion, error) {
	ev, ok := e.registry[id]
	if !ok {
		return nil, nil
	}
	return e.draw(ctx, ev)
}

// claimStored claims an expired event straight from the store.
// CRITICAL: Called only from Run() goroutine.
func (e *Engine) claimStored(ctx context.Context, id string) (*conclusion, error) {
	if _, ok := e.concluding[id]; ok {
		return nil, nil
	}
	now := e.clock.Now()
	if ev, ok := e.registry[id]; ok {
		if !ev.Expired(now) {
			return nil, nil
		}
		return e.draw(ctx, ev)
	}

	ev, ok, err := e.readStored(ctx, id)
	if !ok {
		return nil, err
	}
	if !ev.Expired(now) {
		e.registry[id] = ev
		e.schedule.Push(id, ev.EndTime)
		return nil, nil
	}
	return e.draw(ctx, ev)
}

// draw reads the entrants of ev, marks it concluding and picks winners.
// CRITICAL: Called only from Run() goroutine.
func (e *Engine) draw(ctx context.Context, ev domain.Event) (*conclusion, error) {
	entrants, err := e.store.ListEntries(ctx, ev.ID)
	if err != nil {
		return nil, storageError(ev.ID, "read entrants", err)
	}

	e.forget(ev.ID)
	e.concluding[ev.ID] = struct{}{}

	return &conclusion{
		event:    ev,
		entrants: entrants,
		winners:  drawWinners(e.rng, entrants, ev.WinnerCount),
	}, nil
}

// release ends the concluding state of id. If deletion failed, the stored
// row is now eligible for the recovery loop to conclude again.
// CRITICAL: Called only from Run() goroutine.
func (e *Engine) release(id string) {
	delete(e.concluding, id)
}

// finish performs the side effects of a claimed conclusion. Safe off the
// Run goroutine; it touches no registry state.
func (e *Engine) finish(ctx context.Context, c *conclusion) domain.Outcome {
	ev := c.event
	now := e.clock.Now().UTC()
	log := e.logger.With("event", ev.ID)

	text := present.NoEntrantsText
	if len(c.winners) > 0 {
		text = present.WinnersText(c.winners)
	}
	if err := e.presenter.Announce(ctx, ev.Location, text); err != nil {
		log.Warn("announce winners failed", "error", presentationError(ev.ID, "announce", err))
	}

	snap := domain.Snapshot{Event: ev, Status: domain.StatusEnded, Winners: c.winners}
	if err := e.presenter.Finish(ctx, ev.Location, snap); err != nil {
		log.Warn("finish presentation failed", "error", presentationError(ev.ID, "finish", err))
	}

	if err := e.archiver.WriteRecord(ctx, domain.NewArchiveRecord(ev, c.entrants, c.winners, now)); err != nil {
		log.Error("archive concluded event failed", "error", err)
	}

	if err := e.store.DeleteEvent(ctx, ev.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error("delete concluded event failed", "error", err)
	}

	log.Info("event concluded", "entrants", len(c.entrants), "winners", c.winners)

	outcome := domain.Outcome{
		EventID:     ev.ID,
		Title:       ev.Title,
		Location:    ev.Location,
		Entrants:    c.entrants,
		Winners:     c.winners,
		ConcludedAt: now,
	}
	for _, hook := range e.hooks {
		hook(outcome)
	}
	return outcome
}

// fireDue concludes every event whose deadline has passed.
// CRITICAL: Called only from Run() goroutine.
func (e *Engine) fireDue(ctx context.Context) {
	now := e.clock.Now()
	for _, id := range e.schedule.PopDue(now) {
		c, err := e.claim(ctx, id)
		if err != nil {
			e.logger.Error("claim expired event failed, retrying", "event", id, "error", err)
			e.schedule.Push(id, now.Add(claimRetryDelay))
			continue
		}
		if c == nil {
			continue
		}

		e.effects.Add(1)
		go func() {
			defer e.effects.Done()
			ectx, cancel := e.effectContext(ctx)
			defer cancel()
			e.finish(ectx, c)
			e.queue.Enqueue(func() { e.release(c.event.ID) })
		}()
	}
}
