// Package harness runs giveaway lifecycle scenarios against the real engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: expired_while_down
//	description: "An event that expires during downtime is concluded on reconcile"
//	start: "2026-03-01T12:00:00Z"
//	seed: 7
//	flow:
//	  - action: create
//	    title: Keyboard
//	    length: 1h
//	    channel: general
//	    winners: 1
//	  - action: enter
//	    event: N001-2026
//	    participant: alice
//	  - action: restart
//	  - action: advance
//	    by: 2h
//	  - action: reconcile
//	assertions:
//	  - type: archived
//	    event: N001-2026
//	    entrants: 1
//	    winners: 1
//
// # Actions
//
//   - create: title, length, channel, winners (default 1), image
//   - enter, withdraw: event, participant
//   - conclude, cancel: event
//   - extend: event, length
//   - advance: by (a duration spec such as 2h30m)
//   - gone: channel; later Resolve calls for that channel report it deleted
//   - reconcile: one recovery pass
//   - restart: stop the engine and start a fresh one over the same store
//
// Any step may set expect_error to an engine error code; the step then must
// fail with exactly that code.
//
// # Assertion Types
//
//   - live: the engine registry holds exactly events
//   - stored: the store holds exactly events
//   - archived: event has an archive record, optionally with entrant and winner counts
//   - announcements: count announcements were made, optionally one containing text
//
// # Deterministic Testing
//
// Every scenario runs on a fresh in-memory SQLite store with a fake clock,
// a recording presenter and a PCG random source seeded from the scenario, so
// traces are identical across runs and can be compared with golden files.
package harness
