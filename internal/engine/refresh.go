package engine

import (
	"context"

	"github.com/roach88/neko/internal/domain"
)

// refreshAll re-renders remaining time for every live event on a separate
// goroutine. A tick that arrives while the previous batch is still running
// is skipped.
// CRITICAL: Called only from Run() goroutine.
func (e *Engine) refreshAll(ctx context.Context) {
	if len(e.registry) == 0 || !e.refreshing.CompareAndSwap(false, true) {
		return
	}

	snaps := make([]domain.Snapshot, 0, len(e.registry))
	for _, ev := range e.registry {
		snaps = append(snaps, e.snapshot(ev, domain.StatusScheduled))
	}

	e.effects.Add(1)
	go func() {
		defer e.effects.Done()
		defer e.refreshing.Store(false)

		ectx, cancel := e.effectContext(ctx)
		defer cancel()
		for _, snap := range snaps {
			if err := e.presenter.Refresh(ectx, snap.Event.Location, snap); err != nil {
				e.logger.Debug("refresh presentation failed", "event", snap.Event.ID, "error", err)
			}
		}
	}()
}
