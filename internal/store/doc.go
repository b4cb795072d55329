// Package store provides SQLite-backed durable storage for giveaway events.
//
// Relations:
//   - events: one row per live event (id, title, location, end_time, winner_count, image)
//   - entries: one row per (event_id, participant_id), cascades with its event
//   - id_sequences: per-year counter backing event id allocation
//   - archives: append-only record of concluded events, keyed by event id
//
// # Guarantees
//
// Every write commits before the call returns. Entry insertion and archival
// are idempotent (ON CONFLICT DO NOTHING); callers learn whether a row was
// actually written from the boolean results.
//
// An event's end_time never decreases: UpdateEvent rejects a patch that
// would move it earlier.
//
// Timestamps are stored as unix seconds in UTC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
