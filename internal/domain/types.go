package domain

import "time"

// MaxTitleLength bounds an event title, counted in runes after NFC normalisation.
const MaxTitleLength = 256

// Location is the opaque handle of where an event is presented.
//
// Channel is chosen by the creator. Message is assigned by the presentation
// adapter when the event is first rendered and is empty until then.
type Location struct {
	Channel string `json:"channel"`
	Message string `json:"message,omitempty"`
}

// Event is one giveaway instance with a deadline and a winner count.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Location    Location  `json:"location"`
	EndTime     time.Time `json:"end_time"`
	WinnerCount int       `json:"winner_count"`
	Image       string    `json:"image,omitempty"`
}

// Expired reports whether the event deadline is at or before now.
func (e Event) Expired(now time.Time) bool {
	return !e.EndTime.After(now)
}

// EventPatch is a partial update. Nil fields are left untouched.
type EventPatch struct {
	Title       *string
	Location    *Location
	EndTime     *time.Time
	WinnerCount *int
	Image       *string
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Title == nil && p.Location == nil && p.EndTime == nil &&
		p.WinnerCount == nil && p.Image == nil
}

// CreateRequest carries user input for a new event before validation.
type CreateRequest struct {
	Title   string `json:"title"`
	Length  string `json:"length"`
	Channel string `json:"channel"`
	Winners int    `json:"winners"`
	Image   string `json:"image,omitempty"`
}

// EventView is the read projection returned by single-event queries.
type EventView struct {
	Event
	Entrants int `json:"entrants"`
}

// Status is the presentation state of an event.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Snapshot is what a presentation adapter renders.
type Snapshot struct {
	Event     Event         `json:"event"`
	Status    Status        `json:"status"`
	Remaining time.Duration `json:"remaining"`
	Winners   []string      `json:"winners,omitempty"`
}

// Outcome describes a completed conclusion.
type Outcome struct {
	EventID     string    `json:"event_id"`
	Title       string    `json:"title"`
	Location    Location  `json:"location"`
	Entrants    []string  `json:"entrants"`
	Winners     []string  `json:"winners"`
	ConcludedAt time.Time `json:"concluded_at"`
}

// ArchiveRecord is the append-only audit record written once per concluded event.
type ArchiveRecord struct {
	EventID     string    `json:"event_id"`
	Title       string    `json:"title"`
	Location    Location  `json:"location"`
	EndTime     time.Time `json:"end_time"`
	WinnerCount int       `json:"winner_count"`
	Image       string    `json:"image,omitempty"`
	Entrants    []string  `json:"entrants"`
	Winners     []string  `json:"winners"`
	ConcludedAt time.Time `json:"concluded_at"`
}

// NewArchiveRecord builds the archive record for a concluded event.
func NewArchiveRecord(ev Event, entrants, winners []string, at time.Time) ArchiveRecord {
	return ArchiveRecord{
		EventID:     ev.ID,
		Title:       ev.Title,
		Location:    ev.Location,
		EndTime:     ev.EndTime,
		WinnerCount: ev.WinnerCount,
		Image:       ev.Image,
		Entrants:    nonNil(entrants),
		Winners:     nonNil(winners),
		ConcludedAt: at,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
