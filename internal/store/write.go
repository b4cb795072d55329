package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/neko/internal/domain"
)

// AddEvent inserts a new event row. A reused id fails with ErrDuplicate.
func (s *Store) AddEvent(ctx context.Context, ev domain.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, title, channel_id, message_id, end_time, winner_count, image)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.Title,
		ev.Location.Channel,
		ev.Location.Message,
		toUnix(ev.EndTime),
		ev.WinnerCount,
		ev.Image,
	)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) {
			return fmt.Errorf("add event %s: %w", ev.ID, ErrDuplicate)
		}
		return fmt.Errorf("add event %s: %w", ev.ID, err)
	}
	return nil
}

// UpdateEvent applies a partial update and returns the stored result.
//
// A patch moving end_time earlier than the stored value fails with
// ErrEndTimeDecrease and nothing is written.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch domain.EventPatch) (domain.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("update event %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	current, err := getEvent(ctx, tx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("update event %s: %w", id, err)
	}
	if patch.Empty() {
		return current, nil
	}

	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
		current.Title = *patch.Title
	}
	if patch.Location != nil {
		sets = append(sets, "channel_id = ?", "message_id = ?")
		args = append(args, patch.Location.Channel, patch.Location.Message)
		current.Location = *patch.Location
	}
	if patch.EndTime != nil {
		if patch.EndTime.Before(current.EndTime) {
			return domain.Event{}, fmt.Errorf("update event %s: %w", id, ErrEndTimeDecrease)
		}
		sets = append(sets, "end_time = ?")
		args = append(args, toUnix(*patch.EndTime))
		current.EndTime = fromUnix(toUnix(*patch.EndTime))
	}
	if patch.WinnerCount != nil {
		sets = append(sets, "winner_count = ?")
		args = append(args, *patch.WinnerCount)
		current.WinnerCount = *patch.WinnerCount
	}
	if patch.Image != nil {
		sets = append(sets, "image = ?")
		args = append(args, *patch.Image)
		current.Image = *patch.Image
	}

	args = append(args, id)
	query := "UPDATE events SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return domain.Event{}, fmt.Errorf("update event %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("update event %s: commit: %w", id, err)
	}
	return current, nil
}

// DeleteEvent removes an event and all of its entries in one transaction.
// Returns ErrNotFound if the event did not exist.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete event %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	// Explicit delete keeps the cascade working on handles opened without
	// foreign_keys=ON.
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE event_id = ?`, id); err != nil {
		return fmt.Errorf("delete event %s: entries: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete event %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete event %s: commit: %w", id, err)
	}
	return nil
}

// AddEntry registers a participant. Returns false when the participant was
// already entered. Entering an unknown event fails with ErrNotFound.
func (s *Store) AddEntry(ctx context.Context, eventID, participantID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (event_id, participant_id)
		VALUES (?, ?)
		ON CONFLICT(event_id, participant_id) DO NOTHING
	`, eventID, participantID)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return false, fmt.Errorf("add entry %s/%s: %w", eventID, participantID, ErrNotFound)
		}
		return false, fmt.Errorf("add entry %s/%s: %w", eventID, participantID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add entry %s/%s: rows affected: %w", eventID, participantID, err)
	}
	return n == 1, nil
}

// RemoveEntry withdraws a participant. Returns false when there was nothing to remove.
func (s *Store) RemoveEntry(ctx context.Context, eventID, participantID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM entries WHERE event_id = ? AND participant_id = ?
	`, eventID, participantID)
	if err != nil {
		return false, fmt.Errorf("remove entry %s/%s: %w", eventID, participantID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove entry %s/%s: rows affected: %w", eventID, participantID, err)
	}
	return n == 1, nil
}

// NextEventSeq allocates the next id sequence number for year.
//
// The counter never goes backwards. Its floor is the number of events already
// tagged with the year, which covers databases that predate the counter table.
func (s *Store) NextEventSeq(ctx context.Context, year int) (int, error) {
	pattern := yearPattern(year)

	var next int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO id_sequences (year, last)
		VALUES (?, (SELECT COUNT(*) FROM events WHERE id LIKE ?) + 1)
		ON CONFLICT(year) DO UPDATE SET
			last = MAX(id_sequences.last, (SELECT COUNT(*) FROM events WHERE id LIKE ?)) + 1
		RETURNING last
	`, year, pattern, pattern).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next event seq %d: %w", year, err)
	}
	return next, nil
}

// WriteRecord appends the archive record for a concluded event.
// A second write for the same event id is silently ignored.
func (s *Store) WriteRecord(ctx context.Context, rec domain.ArchiveRecord) error {
	entrants, err := marshalList(rec.Entrants)
	if err != nil {
		return fmt.Errorf("write record %s: %w", rec.EventID, err)
	}
	winners, err := marshalList(rec.Winners)
	if err != nil {
		return fmt.Errorf("write record %s: %w", rec.EventID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO archives
		(event_id, title, channel_id, message_id, end_time, winner_count, image, entrants, winners, concluded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`,
		rec.EventID,
		rec.Title,
		rec.Location.Channel,
		rec.Location.Message,
		toUnix(rec.EndTime),
		rec.WinnerCount,
		rec.Image,
		entrants,
		winners,
		toUnix(rec.ConcludedAt),
	)
	if err != nil {
		return fmt.Errorf("write record %s: %w", rec.EventID, err)
	}
	return nil
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == code
	}
	return false
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
