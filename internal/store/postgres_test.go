package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/discovery-engine/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func sessionJSON(t *testing.T, s *model.Session) []byte {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return data
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS sessions`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	sess := newSession("pg-1", model.StateAwaitingFirstAnswer, baseTime)

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("pg-1", "awaiting_first_answer", "", 0, pgxmock.AnyArg(), int64(1), baseTime, baseTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateSession(context.Background(), sess))
	assert.Equal(t, int64(1), sess.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	want := newSession("pg-2", model.StateAsking, baseTime)
	want.Version = 3

	mock.ExpectQuery(`SELECT data, version FROM sessions WHERE id = \$1`).
		WithArgs("pg-2").
		WillReturnRows(pgxmock.NewRows([]string{"data", "version"}).AddRow(sessionJSON(t, want), int64(3)))

	got, err := s.LoadSession(context.Background(), "pg-2")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadSession_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data, version FROM sessions WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LoadSession(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	sess := newSession("pg-3", model.StateAsking, baseTime)
	sess.Version = 2

	mock.ExpectExec(`UPDATE sessions SET .* WHERE id = \$7 AND version = \$8`).
		WithArgs("asking", "", 0, pgxmock.AnyArg(), int64(3), baseTime, "pg-3", int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SaveSession(context.Background(), sess))
	assert.Equal(t, int64(3), sess.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSession_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	sess := newSession("pg-4", model.StateAsking, baseTime)
	sess.Version = 1

	mock.ExpectExec(`UPDATE sessions SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM sessions WHERE id = \$1`).
		WithArgs("pg-4").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	err := s.SaveSession(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrPersistenceConflict))
	assert.Equal(t, int64(1), sess.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSession_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	sess := newSession("pg-5", model.StateAsking, baseTime)

	mock.ExpectExec(`UPDATE sessions SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM sessions WHERE id = \$1`).
		WithArgs("pg-5").
		WillReturnError(pgx.ErrNoRows)

	err := s.SaveSession(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSession_ExecError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	sess := newSession("pg-6", model.StateAsking, baseTime)

	mock.ExpectExec(`UPDATE sessions SET`).
		WillReturnError(errors.New("connection reset"))

	err := s.SaveSession(context.Background(), sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: save session pg-6")
	assert.False(t, model.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSessions(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	a := newSession("a", model.StateComplete, baseTime.Add(time.Hour))
	a.Version = 4

	mock.ExpectQuery(`SELECT data, version FROM sessions WHERE state = \$1 ORDER BY updated_at DESC, id LIMIT \$2 OFFSET \$3`).
		WithArgs("complete", 10, 5).
		WillReturnRows(pgxmock.NewRows([]string{"data", "version"}).AddRow(sessionJSON(t, a), int64(4)))

	got, err := s.ListSessions(context.Background(), SessionFilter{State: model.StateComplete, Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a, got[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSessions_Unfiltered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data, version FROM sessions ORDER BY updated_at DESC, id$`).
		WillReturnRows(pgxmock.NewRows([]string{"data", "version"}))

	got, err := s.ListSessions(context.Background(), SessionFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteSessionsBefore(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cutoff := baseTime.Add(-24 * time.Hour)

	mock.ExpectExec(`DELETE FROM sessions WHERE updated_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := s.DeleteSessionsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	s := &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)

	assert.NoError(t, (&PostgresStore{}).Close())
}
