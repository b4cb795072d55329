package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/roach88/neko/internal/store"
)

// RegisterEntry enters participantID into a live event.
//
// Returns created=false when the participant was already entered. Fails with
// NOT_FOUND once the event has been claimed for conclusion: the registry
// check and the store write happen in the same loop step.
func (e *Engine) RegisterEntry(ctx context.Context, eventID, participantID string) (bool, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return false, validationError(CodeInvalidParticipant, "participant id is required")
	}

	var (
		created bool
		opErr   error
	)
	err := e.call(ctx, func() {
		if _, ok := e.registry[eventID]; !ok {
			opErr = notFound(eventID)
			return
		}
		created, opErr = e.store.AddEntry(ctx, eventID, participantID)
		if opErr != nil {
			opErr = e.entryError(eventID, "save entry", opErr)
		}
	})
	if err != nil {
		return false, err
	}
	if opErr == nil {
		e.logger.Debug("entry registered", "event", eventID, "participant", participantID, "created", created)
	}
	return created, opErr
}

// WithdrawEntry removes participantID from a live event.
// Returns removed=false when the participant was not entered.
func (e *Engine) WithdrawEntry(ctx context.Context, eventID, participantID string) (bool, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return false, validationError(CodeInvalidParticipant, "participant id is required")
	}

	var (
		removed bool
		opErr   error
	)
	err := e.call(ctx, func() {
		if _, ok := e.registry[eventID]; !ok {
			opErr = notFound(eventID)
			return
		}
		removed, opErr = e.store.RemoveEntry(ctx, eventID, participantID)
		if opErr != nil {
			opErr = e.entryError(eventID, "remove entry", opErr)
		}
	})
	if err != nil {
		return false, err
	}
	return removed, opErr
}

// entryError maps a store failure for a live event. A live event missing
// from the store was deleted externally; it is dropped from the registry.
// Runs on the Run goroutine.
func (e *Engine) entryError(eventID, op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		e.forget(eventID)
		e.logger.Warn("live event missing from store, dropped", "event", eventID)
		return notFound(eventID)
	}
	return storageError(eventID, op, err)
}

// forget removes id from the registry and disarms its deadline.
// Runs on the Run goroutine.
func (e *Engine) forget(id string) {
	delete(e.registry, id)
	e.schedule.Remove(id)
}
