package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/discovery-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Timestamps are stored as unix nanoseconds so range filters compare numerically.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	state          TEXT NOT NULL,
	persona_id     TEXT NOT NULL DEFAULT '',
	question_count INTEGER NOT NULL DEFAULT 0,
	data           TEXT NOT NULL,
	version        INTEGER NOT NULL DEFAULT 1,
	created_ns     INTEGER NOT NULL,
	updated_ns     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_ns);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
	prepareCreate(sess)
	data, err := encodeSession(sess)
	if err != nil {
		return eris.Wrap(err, "sqlite: create session")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, state, persona_id, question_count, data, version, created_ns, updated_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, string(sess.State), sess.PersonaID, sess.QuestionCount, string(data),
		sess.Version, sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: create session %s", sess.ID)
	}
	return nil
}

func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data, version FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("sqlite", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load session %s", id)
	}
	return sess, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, sess *model.Session) error {
	expected := sess.Version
	snapshot := sess.Clone()
	snapshot.Version = expected + 1
	data, err := encodeSession(snapshot)
	if err != nil {
		return eris.Wrap(err, "sqlite: save session")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, persona_id = ?, question_count = ?, data = ?, version = ?, updated_ns = ?
		 WHERE id = ? AND version = ?`,
		string(snapshot.State), snapshot.PersonaID, snapshot.QuestionCount, string(data),
		snapshot.Version, snapshot.UpdatedAt.UnixNano(), sess.ID, expected,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save session %s", sess.ID)
	}
	if err := s.checkRowsAffected(ctx, res, sess.ID, expected); err != nil {
		return err
	}
	sess.Version = snapshot.Version
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*model.Session, error) {
	var (
		q    strings.Builder
		args []any
	)
	q.WriteString(`SELECT data, version FROM sessions`)
	if filter.State != "" {
		q.WriteString(` WHERE state = ?`)
		args = append(args, string(filter.State))
	}
	q.WriteString(` ORDER BY updated_ns DESC, id`)
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	q.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	out := []*model.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		out = append(out, sess)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sessions")
}

func (s *SQLiteStore) DeleteSessionsBefore(ctx context.Context, t time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_ns < ?`, t.UnixNano())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

// checkRowsAffected tells a lost version race apart from a missing row.
func (s *SQLiteStore) checkRowsAffected(ctx context.Context, res sql.Result, id string, expected int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("sqlite", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: check session %s", id)
	}
	return conflict("sqlite", id, expected)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (*model.Session, error) {
	var (
		data    string
		version int64
	)
	if err := row.Scan(&data, &version); err != nil {
		return nil, err
	}
	return decodeSession([]byte(data), version)
}
