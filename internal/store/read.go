package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/neko/internal/domain"
)

const eventColumns = `id, title, channel_id, message_id, end_time, winner_count, image`

// GetEvent returns the event with the given id, or ErrNotFound.
func (s *Store) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	ev, err := getEvent(ctx, s.db, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("get event %s: %w", id, err)
	}
	return ev, nil
}

func getEvent(ctx context.Context, q queryer, id string) (domain.Event, error) {
	row := q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, ErrNotFound
	}
	return ev, err
}

// ListEntries returns the participants of an event in registration order.
func (s *Store) ListEntries(ctx context.Context, eventID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_id FROM entries
		WHERE event_id = ?
		ORDER BY rowid ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list entries %s: %w", eventID, err)
	}
	defer rows.Close()

	// Return empty slice instead of nil
	entrants := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("list entries %s: scan: %w", eventID, err)
		}
		entrants = append(entrants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries %s: %w", eventID, err)
	}
	return entrants, nil
}

// CountEntries returns the number of participants entered in an event.
func (s *Store) CountEntries(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE event_id = ?`, eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries %s: %w", eventID, err)
	}
	return n, nil
}

// ListActiveEvents returns events whose end_time is after now, soonest first.
func (s *Store) ListActiveEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	return s.listEvents(ctx, "list active events",
		`SELECT `+eventColumns+` FROM events WHERE end_time > ? ORDER BY end_time ASC, id ASC`,
		toUnix(now))
}

// ListExpiredEvents returns events whose end_time is at or before now, oldest first.
func (s *Store) ListExpiredEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	return s.listEvents(ctx, "list expired events",
		`SELECT `+eventColumns+` FROM events WHERE end_time <= ? ORDER BY end_time ASC, id ASC`,
		toUnix(now))
}

// ListEvents returns every stored event, latest deadline first.
func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.listEvents(ctx, "list events",
		`SELECT `+eventColumns+` FROM events ORDER BY end_time DESC, id ASC`)
}

func (s *Store) listEvents(ctx context.Context, op, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

// ReadRecord returns the archive record of a concluded event, or ErrNotFound.
func (s *Store) ReadRecord(ctx context.Context, eventID string) (domain.ArchiveRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+archiveColumns+` FROM archives WHERE event_id = ?`, eventID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ArchiveRecord{}, fmt.Errorf("read record %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return domain.ArchiveRecord{}, fmt.Errorf("read record %s: %w", eventID, err)
	}
	return rec, nil
}

// ListRecords returns all archive records, most recently concluded first.
func (s *Store) ListRecords(ctx context.Context) ([]domain.ArchiveRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+archiveColumns+` FROM archives
		ORDER BY concluded_at DESC, event_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := []domain.ArchiveRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list records: scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

const archiveColumns = `event_id, title, channel_id, message_id, end_time, winner_count, image, entrants, winners, concluded_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (domain.Event, error) {
	var (
		ev  domain.Event
		end int64
	)
	err := sc.Scan(&ev.ID, &ev.Title, &ev.Location.Channel, &ev.Location.Message,
		&end, &ev.WinnerCount, &ev.Image)
	if err != nil {
		return domain.Event{}, err
	}
	ev.EndTime = fromUnix(end)
	return ev, nil
}

func scanRecord(sc scanner) (domain.ArchiveRecord, error) {
	var (
		rec               domain.ArchiveRecord
		end, concluded    int64
		entrants, winners string
	)
	err := sc.Scan(&rec.EventID, &rec.Title, &rec.Location.Channel, &rec.Location.Message,
		&end, &rec.WinnerCount, &rec.Image, &entrants, &winners, &concluded)
	if err != nil {
		return domain.ArchiveRecord{}, err
	}
	rec.EndTime = fromUnix(end)
	rec.ConcludedAt = fromUnix(concluded)
	if rec.Entrants, err = unmarshalList(entrants); err != nil {
		return domain.ArchiveRecord{}, err
	}
	if rec.Winners, err = unmarshalList(winners); err != nil {
		return domain.ArchiveRecord{}, err
	}
	return rec, nil
}
