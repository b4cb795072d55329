package engine

import (
	"context"
	"errors"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/store"
)

// Cancel deletes a live event without drawing winners.
//
// The registry entry and its deadline are removed only after the store
// delete commits, so a pending timer becomes a no-op.
func (e *Engine) Cancel(ctx context.Context, eventID string) error {
	var (
		ev    domain.Event
		opErr error
	)
	err := e.call(ctx, func() {
		var ok bool
		if ev, ok = e.registry[eventID]; !ok {
			opErr = notFound(eventID)
			return
		}
		if err := e.store.DeleteEvent(ctx, eventID); err != nil && !errors.Is(err, store.ErrNotFound) {
			opErr = storageError(eventID, "delete event", err)
			return
		}
		e.forget(eventID)
	})
	if err != nil {
		return err
	}
	if opErr != nil {
		return opErr
	}

	if err := e.presenter.Finish(ctx, ev.Location, e.snapshot(ev, domain.StatusCancelled)); err != nil {
		e.logger.Warn("finish presentation failed", "event", eventID,
			"error", presentationError(eventID, "finish", err))
	}
	e.logger.Info("event cancelled", "event", eventID)
	return nil
}

// Extend pushes the deadline of a live event later by the given duration
// spec. The end time never moves earlier.
func (e *Engine) Extend(ctx context.Context, eventID, length string) (domain.Event, error) {
	d, err := e.parseLength(length)
	if err != nil {
		return domain.Event{}, err
	}

	var (
		updated domain.Event
		opErr   error
	)
	err = e.call(ctx, func() {
		ev, ok := e.registry[eventID]
		if !ok {
			opErr = notFound(eventID)
			return
		}
		end := ev.EndTime.Add(d)
		updated, opErr = e.store.UpdateEvent(ctx, eventID, domain.EventPatch{EndTime: &end})
		if opErr != nil {
			opErr = e.entryError(eventID, "extend event", opErr)
			return
		}
		e.registry[eventID] = updated
		e.schedule.Push(eventID, updated.EndTime)
	})
	if err != nil {
		return domain.Event{}, err
	}
	if opErr != nil {
		return domain.Event{}, opErr
	}

	if err := e.presenter.Refresh(ctx, updated.Location, e.snapshot(updated, domain.StatusScheduled)); err != nil {
		e.logger.Warn("refresh presentation failed", "event", eventID,
			"error", presentationError(eventID, "refresh", err))
	}
	e.logger.Info("event extended", "event", eventID, "end_time", updated.EndTime)
	return updated, nil
}

// Reload inserts a stored event into the registry and arms its deadline if
// it is not already live or being concluded.
//
// The row is re-read from the store in the same loop step, so a listing
// taken before a concurrent conclusion or cancellation cannot bring a
// deleted event back. Expired rows are never loaded; ConcludeStored handles
// them. Returns loaded=false when nothing was inserted.
func (e *Engine) Reload(ctx context.Context, ev domain.Event) (bool, error) {
	var (
		loaded bool
		stored domain.Event
		opErr  error
	)
	err := e.call(ctx, func() {
		if e.known(ev.ID) {
			return
		}
		var ok bool
		if stored, ok, opErr = e.readStored(ctx, ev.ID); !ok {
			return
		}
		if stored.Expired(e.clock.Now()) {
			return
		}
		e.registry[stored.ID] = stored
		e.schedule.Push(stored.ID, stored.EndTime)
		loaded = true
	})
	if err != nil {
		return false, err
	}
	if loaded {
		e.logger.Info("event reloaded", "event", stored.ID, "end_time", stored.EndTime)
	}
	return loaded, opErr
}

// known reports whether id is live or being concluded.
// Runs on the Run goroutine.
func (e *Engine) known(id string) bool {
	if _, ok := e.registry[id]; ok {
		return true
	}
	_, ok := e.concluding[id]
	return ok
}

// readStored fetches the current row for id. ok is false when the row is
// gone or the read failed.
// Runs on the Run goroutine.
func (e *Engine) readStored(ctx context.Context, id string) (domain.Event, bool, error) {
	ev, err := e.store.GetEvent(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.Event{}, false, nil
	case err != nil:
		return domain.Event{}, false, storageError(id, "read event", err)
	}
	return ev, true, nil
}

// Discard deletes an unrecoverable event from the store and the registry.
// Events being concluded are left alone. Returns discarded=false if there
// was nothing to delete.
func (e *Engine) Discard(ctx context.Context, eventID string) (bool, error) {
	var (
		discarded bool
		opErr     error
	)
	err := e.call(ctx, func() {
		if _, ok := e.concluding[eventID]; ok {
			return
		}
		err := e.store.DeleteEvent(ctx, eventID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			opErr = storageError(eventID, "discard event", err)
			return
		default:
			discarded = true
		}
		if _, ok := e.registry[eventID]; ok {
			e.forget(eventID)
			discarded = true
		}
	})
	if err != nil {
		return false, err
	}
	if discarded {
		e.logger.Warn("event discarded", "event", eventID)
	}
	return discarded, opErr
}
