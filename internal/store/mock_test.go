package store

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDisk = errors.New("disk I/O error")

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestMock_AddEntryPropagatesExecError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO entries")).
		WithArgs("N001-2026", "alice").
		WillReturnError(errDisk)

	created, err := s.AddEntry(t.Context(), "N001-2026", "alice")
	require.Error(t, err)
	assert.False(t, created)
	assert.ErrorIs(t, err, errDisk)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_DeleteEventRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM entries")).
		WithArgs("N001-2026").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events")).
		WithArgs("N001-2026").
		WillReturnError(errDisk)
	mock.ExpectRollback()

	err := s.DeleteEvent(t.Context(), "N001-2026")
	assert.ErrorIs(t, err, errDisk)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_DeleteEventCommitFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errDisk)

	err := s.DeleteEvent(t.Context(), "N001-2026")
	assert.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), "commit")
}

func TestMock_ListEntriesRowError(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"participant_id"}).
		AddRow("alice").
		AddRow("bob").
		RowError(1, errDisk)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT participant_id FROM entries")).
		WithArgs("N001-2026").
		WillReturnRows(rows)

	entrants, err := s.ListEntries(t.Context(), "N001-2026")
	assert.ErrorIs(t, err, errDisk)
	assert.Nil(t, entrants)
}

func TestMock_ListActiveEventsQueryError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE end_time >")).
		WillReturnError(errDisk)

	_, err := s.ListActiveEvents(t.Context(), time.Now())
	assert.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), "list active events")
}

func TestMock_NextEventSeqError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO id_sequences")).
		WithArgs(2026, "%-2026", "%-2026").
		WillReturnError(errDisk)

	_, err := s.NextEventSeq(t.Context(), 2026)
	assert.ErrorIs(t, err, errDisk)
}

func TestMock_NextEventSeqScansReturning(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO id_sequences")).
		WithArgs(2026, "%-2026", "%-2026").
		WillReturnRows(sqlmock.NewRows([]string{"last"}).AddRow(7))

	got, err := s.NextEventSeq(t.Context(), 2026)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestMock_UpdateEventBeginFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errDisk)

	title := "renamed"
	_, err := s.UpdateEvent(t.Context(), "N001-2026", domainPatchTitle(title))
	assert.ErrorIs(t, err, errDisk)
}
