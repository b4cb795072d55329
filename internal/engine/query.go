package engine

import (
	"context"
	"errors"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/store"
)

// ListEvent returns a stored event with its entrant count.
// Reads the store directly; safe to call concurrently with anything.
func (e *Engine) ListEvent(ctx context.Context, eventID string) (domain.EventView, error) {
	ev, err := e.store.GetEvent(ctx, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.EventView{}, notFound(eventID)
	}
	if err != nil {
		return domain.EventView{}, storageError(eventID, "read event", err)
	}

	n, err := e.store.CountEntries(ctx, eventID)
	if err != nil {
		return domain.EventView{}, storageError(eventID, "count entries", err)
	}
	return domain.EventView{Event: ev, Entrants: n}, nil
}

// ListAllEvents returns every stored event, latest deadline first.
func (e *Engine) ListAllEvents(ctx context.Context) ([]domain.Event, error) {
	events, err := e.store.ListEvents(ctx)
	if err != nil {
		return nil, storageError("", "list events", err)
	}
	return events, nil
}
