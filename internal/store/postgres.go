package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/discovery-engine/internal/db"
	"github.com/sells-group/discovery-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

const (
	pgInsertSession = `INSERT INTO sessions (id, state, persona_id, question_count, data, version, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	pgLoadSession   = `SELECT data, version FROM sessions WHERE id = $1`
	pgSaveSession   = `UPDATE sessions SET state = $1, persona_id = $2, question_count = $3, data = $4, version = $5, updated_at = $6 WHERE id = $7 AND version = $8`
	pgSessionExists = `SELECT 1 FROM sessions WHERE id = $1`
	pgDeleteBefore  = `DELETE FROM sessions WHERE updated_at < $1`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_session":         pgInsertSession,
	"load_session":           pgLoadSession,
	"save_session":           pgSaveSession,
	"session_exists":         pgSessionExists,
	"delete_sessions_before": pgDeleteBefore,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg, preparedStatements)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	state          TEXT NOT NULL,
	persona_id     TEXT NOT NULL DEFAULT '',
	question_count INTEGER NOT NULL DEFAULT 0,
	data           JSONB NOT NULL,
	version        BIGINT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.Session) error {
	prepareCreate(sess)
	data, err := encodeSession(sess)
	if err != nil {
		return eris.Wrap(err, "postgres: create session")
	}
	_, err = s.pool.Exec(ctx, pgInsertSession,
		sess.ID, string(sess.State), sess.PersonaID, sess.QuestionCount, data,
		sess.Version, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: create session %s", sess.ID)
	}
	return nil
}

func (s *PostgresStore) LoadSession(ctx context.Context, id string) (*model.Session, error) {
	sess, err := scanPgSession(s.pool.QueryRow(ctx, pgLoadSession, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("postgres", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load session %s", id)
	}
	return sess, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, sess *model.Session) error {
	expected := sess.Version
	snapshot := sess.Clone()
	snapshot.Version = expected + 1
	data, err := encodeSession(snapshot)
	if err != nil {
		return eris.Wrap(err, "postgres: save session")
	}

	tag, err := s.pool.Exec(ctx, pgSaveSession,
		string(snapshot.State), snapshot.PersonaID, snapshot.QuestionCount, data,
		snapshot.Version, snapshot.UpdatedAt, sess.ID, expected,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save session %s", sess.ID)
	}
	if tag.RowsAffected() == 0 {
		var one int
		err := s.pool.QueryRow(ctx, pgSessionExists, sess.ID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("postgres", sess.ID)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: check session %s", sess.ID)
		}
		return conflict("postgres", sess.ID, expected)
	}
	sess.Version = snapshot.Version
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*model.Session, error) {
	var (
		q    strings.Builder
		args []any
	)
	q.WriteString(`SELECT data, version FROM sessions`)
	if filter.State != "" {
		args = append(args, string(filter.State))
		q.WriteString(` WHERE state = $` + strconv.Itoa(len(args)))
	}
	q.WriteString(` ORDER BY updated_at DESC, id`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		q.WriteString(` OFFSET $` + strconv.Itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	out := []*model.Session{}
	for rows.Next() {
		sess, err := scanPgSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		out = append(out, sess)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sessions")
}

func (s *PostgresStore) DeleteSessionsBefore(ctx context.Context, t time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, pgDeleteBefore, t)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete sessions")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgSession(row scannable) (*model.Session, error) {
	var (
		data    []byte
		version int64
	)
	if err := row.Scan(&data, &version); err != nil {
		return nil, err
	}
	return decodeSession(data, version)
}
