package engine

import (
	"context"
	"fmt"
	"sync"
)

// IDGenerator allocates event ids of the form N001-2026.
// Implemented by SequenceIDs (production) and FixedIDs (tests).
type IDGenerator interface {
	Next(ctx context.Context, year int) (string, error)
}

// Sequencer hands out per-year sequence numbers that never repeat.
type Sequencer interface {
	NextEventSeq(ctx context.Context, year int) (int, error)
}

// FormatID renders a sequence number and year as an event id.
func FormatID(n, year int) string {
	return fmt.Sprintf("N%03d-%d", n, year)
}

// SequenceIDs derives ids from a durable per-year counter.
//
// Uniqueness relies on the engine serializing creation; two generators over
// the same store are only safe if the Sequencer itself is atomic.
type SequenceIDs struct {
	seq Sequencer
}

// NewSequenceIDs creates a generator backed by seq.
func NewSequenceIDs(seq Sequencer) *SequenceIDs {
	return &SequenceIDs{seq: seq}
}

// Next allocates the next id for year.
func (g *SequenceIDs) Next(ctx context.Context, year int) (string, error) {
	n, err := g.seq.NextEventSeq(ctx, year)
	if err != nil {
		return "", fmt.Errorf("allocate id: %w", err)
	}
	return FormatID(n, year), nil
}

// FixedIDs returns a predetermined sequence of ids.
// Used for deterministic testing. Panics if more ids are requested than provided.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator that returns ids in order.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Next returns the next predetermined id, ignoring year.
func (g *FixedIDs) Next(context.Context, int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic(fmt.Sprintf("FixedIDs exhausted: requested id %d but only %d provided", g.idx+1, len(g.ids)))
	}

	id := g.ids[g.idx]
	g.idx++
	return id, nil
}
