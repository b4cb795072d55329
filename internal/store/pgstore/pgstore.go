// Package pgstore is the PostgreSQL implementation of the giveaway store.
//
// It mirrors the SQLite store method for method so either can back the
// engine. Errors use the sentinels from package store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store is a pgx connection pool with giveaway queries.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and applies the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) AddEvent(ctx context.Context, ev domain.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, title, channel_id, message_id, end_time, winner_count, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.ID, ev.Title, ev.Location.Channel, ev.Location.Message, ev.EndTime.Unix(), ev.WinnerCount, ev.Image)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return fmt.Errorf("add event %s: %w", ev.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("add event %s: %w", ev.ID, err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	ev, err := getEvent(ctx, s.pool, id, false)
	if err != nil {
		return domain.Event{}, fmt.Errorf("get event %s: %w", id, err)
	}
	return ev, nil
}

type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getEvent(ctx context.Context, q rowQueryer, id string, forUpdate bool) (domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	ev, err := scanEvent(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, store.ErrNotFound
	}
	return ev, err
}

// UpdateEvent applies a partial update under a row lock.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch domain.EventPatch) (domain.Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Event{}, fmt.Errorf("update event %s: begin: %w", id, err)
	}
	defer tx.Rollback(ctx)

	current, err := getEvent(ctx, tx, id, true)
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
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
		current.Title = *patch.Title
	}
	if patch.Location != nil {
		set("channel_id", patch.Location.Channel)
		set("message_id", patch.Location.Message)
		current.Location = *patch.Location
	}
	if patch.EndTime != nil {
		if patch.EndTime.Before(current.EndTime) {
			return domain.Event{}, fmt.Errorf("update event %s: %w", id, store.ErrEndTimeDecrease)
		}
		set("end_time", patch.EndTime.Unix())
		current.EndTime = time.Unix(patch.EndTime.Unix(), 0).UTC()
	}
	if patch.WinnerCount != nil {
		set("winner_count", *patch.WinnerCount)
		current.WinnerCount = *patch.WinnerCount
	}
	if patch.Image != nil {
		set("image", *patch.Image)
		current.Image = *patch.Image
	}
	args = append(args, id)

	query := "UPDATE events SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(len(args))
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return domain.Event{}, fmt.Errorf("update event %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Event{}, fmt.Errorf("update event %s: commit: %w", id, err)
	}
	return current, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete event %s: begin: %w", id, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM entries WHERE event_id = $1`, id); err != nil {
		return fmt.Errorf("delete event %s: entries: %w", id, err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete event %s: %w", id, store.ErrNotFound)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("delete event %s: commit: %w", id, err)
	}
	return nil
}

func (s *Store) AddEntry(ctx context.Context, eventID, participantID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO entries (event_id, participant_id)
		VALUES ($1, $2)
		ON CONFLICT (event_id, participant_id) DO NOTHING
	`, eventID, participantID)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return false, fmt.Errorf("add entry %s/%s: %w", eventID, participantID, store.ErrNotFound)
		}
		return false, fmt.Errorf("add entry %s/%s: %w", eventID, participantID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RemoveEntry(ctx context.Context, eventID, participantID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM entries WHERE event_id = $1 AND participant_id = $2
	`, eventID, participantID)
	if err != nil {
		return false, fmt.Errorf("remove entry %s/%s: %w", eventID, participantID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListEntries(ctx context.Context, eventID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT participant_id FROM entries WHERE event_id = $1 ORDER BY seq ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list entries %s: %w", eventID, err)
	}
	entrants, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list entries %s: %w", eventID, err)
	}
	if entrants == nil {
		entrants = []string{}
	}
	return entrants, nil
}

func (s *Store) CountEntries(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM entries WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries %s: %w", eventID, err)
	}
	return n, nil
}

func (s *Store) ListActiveEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	return s.listEvents(ctx, "list active events",
		`SELECT `+eventColumns+` FROM events WHERE end_time > $1 ORDER BY end_time ASC, id ASC`, now.Unix())
}

func (s *Store) ListExpiredEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	return s.listEvents(ctx, "list expired events",
		`SELECT `+eventColumns+` FROM events WHERE end_time <= $1 ORDER BY end_time ASC, id ASC`, now.Unix())
}

func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.listEvents(ctx, "list events",
		`SELECT `+eventColumns+` FROM events ORDER BY end_time DESC, id ASC`)
}

func (s *Store) listEvents(ctx context.Context, op, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

// NextEventSeq allocates the next id sequence number for year.
func (s *Store) NextEventSeq(ctx context.Context, year int) (int, error) {
	pattern := fmt.Sprintf("%%-%d", year)
	var next int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO id_sequences (year, last)
		VALUES ($1, (SELECT COUNT(*) FROM events WHERE id LIKE $2) + 1)
		ON CONFLICT (year) DO UPDATE SET
			last = GREATEST(id_sequences.last, (SELECT COUNT(*) FROM events WHERE id LIKE $2)) + 1
		RETURNING last
	`, year, pattern).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next event seq %d: %w", year, err)
	}
	return next, nil
}

func (s *Store) WriteRecord(ctx context.Context, rec domain.ArchiveRecord) error {
	entrants, err := json.Marshal(nonNil(rec.Entrants))
	if err != nil {
		return fmt.Errorf("write record %s: %w", rec.EventID, err)
	}
	winners, err := json.Marshal(nonNil(rec.Winners))
	if err != nil {
		return fmt.Errorf("write record %s: %w", rec.EventID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO archives
		(event_id, title, channel_id, message_id, end_time, winner_count, image, entrants, winners, concluded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING
	`, rec.EventID, rec.Title, rec.Location.Channel, rec.Location.Message, rec.EndTime.Unix(),
		rec.WinnerCount, rec.Image, entrants, winners, rec.ConcludedAt.Unix())
	if err != nil {
		return fmt.Errorf("write record %s: %w", rec.EventID, err)
	}
	return nil
}

func (s *Store) ReadRecord(ctx context.Context, eventID string) (domain.ArchiveRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `SELECT `+archiveColumns+` FROM archives WHERE event_id = $1`, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ArchiveRecord{}, fmt.Errorf("read record %s: %w", eventID, store.ErrNotFound)
	}
	if err != nil {
		return domain.ArchiveRecord{}, fmt.Errorf("read record %s: %w", eventID, err)
	}
	return rec, nil
}

func (s *Store) ListRecords(ctx context.Context) ([]domain.ArchiveRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+archiveColumns+` FROM archives ORDER BY concluded_at DESC, event_id ASC`)
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

const (
	eventColumns   = `id, title, channel_id, message_id, end_time, winner_count, image`
	archiveColumns = `event_id, title, channel_id, message_id, end_time, winner_count, image, entrants, winners, concluded_at`
)

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		ev  domain.Event
		end int64
	)
	if err := row.Scan(&ev.ID, &ev.Title, &ev.Location.Channel, &ev.Location.Message,
		&end, &ev.WinnerCount, &ev.Image); err != nil {
		return domain.Event{}, err
	}
	ev.EndTime = time.Unix(end, 0).UTC()
	return ev, nil
}

func scanRecord(row pgx.Row) (domain.ArchiveRecord, error) {
	var (
		rec               domain.ArchiveRecord
		end, concluded    int64
		entrants, winners []byte
	)
	if err := row.Scan(&rec.EventID, &rec.Title, &rec.Location.Channel, &rec.Location.Message,
		&end, &rec.WinnerCount, &rec.Image, &entrants, &winners, &concluded); err != nil {
		return domain.ArchiveRecord{}, err
	}
	rec.EndTime = time.Unix(end, 0).UTC()
	rec.ConcludedAt = time.Unix(concluded, 0).UTC()
	if err := json.Unmarshal(entrants, &rec.Entrants); err != nil {
		return domain.ArchiveRecord{}, fmt.Errorf("decode entrants: %w", err)
	}
	if err := json.Unmarshal(winners, &rec.Winners); err != nil {
		return domain.ArchiveRecord{}, fmt.Errorf("decode winners: %w", err)
	}
	rec.Entrants = nonNil(rec.Entrants)
	rec.Winners = nonNil(rec.Winners)
	return rec, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
