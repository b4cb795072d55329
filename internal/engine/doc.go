// Package engine implements the giveaway lifecycle engine.
//
// The engine owns the in-memory registry of live events, arms one
// expiration deadline per event, and runs the entry and conclusion
// protocols against a durable Store.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Every registry mutation is a command executed on the Run goroutine.
// Public operations enqueue a command and wait for it. This gives:
//   - unique event ids (allocation is one step)
//   - no entry accepted after a conclusion has claimed its event
//   - at most one conclusion per event
//
// Deadlines:
// Deadlines live in a min-heap. A single timer is re-armed to the earliest
// one after every loop step. When it fires, due events are claimed on the
// loop and their side effects (announce, archive, delete) run on a
// separate goroutine so a slow presentation adapter cannot stall the loop.
//
// Conclusion:
//  1. claim: remove from registry, disarm, mark concluding, read entrants, draw
//  2. announce winners (best effort)
//  3. archive the full entrant list and winners (idempotent)
//  4. delete the event and its entries from the store
//  5. release: clear the concluding mark
//
// A failure in 2-4 is logged. If the delete failed, the stored event is
// expired but not live, so the recovery loop concludes it again; the
// announcement may repeat, the archive record does not.
//
// Durable state is the source of truth. The registry is rebuilt from it by
// Reload after a restart; expired rows are claimed by ConcludeStored in the
// same loop step that reads them, so they never appear as live.
//
// Presentation:
// CreateEvent allocates the id on the loop, calls Presenter.Present on the
// caller's goroutine, and persists and registers the event in a second
// loop step. A slow adapter delays only its own creation.
package engine
