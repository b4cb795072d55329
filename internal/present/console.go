package present

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/duration"
)

// Console renders giveaways as lines of text on a writer.
//
// Handles are UUIDv7 strings. Any handle that parses as a UUID is considered
// resolvable, so events presented by an earlier process survive restarts.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console adapter writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Present renders a new event and returns its handle.
func (c *Console) Present(_ context.Context, loc domain.Location, snap domain.Snapshot) (string, error) {
	handle := uuid.Must(uuid.NewV7()).String()
	ev := snap.Event
	lines := []string{
		fmt.Sprintf("[%s] %s giveaway %s: %s", loc.Channel, handle, ev.ID, ev.Title),
		fmt.Sprintf("[%s]   winners: %d, ends: %s, time remaining: %s",
			loc.Channel, ev.WinnerCount, ev.EndTime.Format("2006-01-02 15:04:05 MST"),
			duration.FormatRemaining(snap.Remaining)),
	}
	if ev.Image != "" {
		lines = append(lines, fmt.Sprintf("[%s]   image: %s", loc.Channel, ev.Image))
	}
	return handle, c.write(lines...)
}

// Refresh re-renders the remaining time of a scheduled event.
func (c *Console) Refresh(_ context.Context, loc domain.Location, snap domain.Snapshot) error {
	return c.write(fmt.Sprintf("[%s] %s giveaway %s time remaining: %s",
		loc.Channel, loc.Message, snap.Event.ID, duration.FormatRemaining(snap.Remaining)))
}

// Finish marks an event as ended or cancelled.
func (c *Console) Finish(_ context.Context, loc domain.Location, snap domain.Snapshot) error {
	line := fmt.Sprintf("[%s] %s giveaway %s %s", loc.Channel, loc.Message, snap.Event.ID,
		strings.ToUpper(string(snap.Status)))
	if len(snap.Winners) > 0 {
		line += ", winners: " + strings.Join(snap.Winners, ", ")
	}
	return c.write(line)
}

// Announce posts text as a reply to the event.
func (c *Console) Announce(_ context.Context, loc domain.Location, text string) error {
	return c.write(fmt.Sprintf("[%s] %s", loc.Channel, text))
}

// Resolve reports ErrGone for handles this adapter could never have issued.
func (c *Console) Resolve(_ context.Context, loc domain.Location) error {
	if loc.Channel == "" || loc.Message == "" {
		return ErrGone
	}
	if _, err := uuid.Parse(loc.Message); err != nil {
		return fmt.Errorf("%w: %s", ErrGone, loc.Message)
	}
	return nil
}

// SetStatus prints the bot presence line.
func (c *Console) SetStatus(_ context.Context, mode, text string) error {
	return c.write(fmt.Sprintf("status [%s] %s", mode, text))
}

func (c *Console) write(lines ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range lines {
		if _, err := fmt.Fprintln(c.w, line); err != nil {
			return fmt.Errorf("console write: %w", err)
		}
	}
	return nil
}
