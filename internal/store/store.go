// Package store persists consultation sessions between turns. Every
// implementation enforces optimistic concurrency on the session version.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/discovery-engine/internal/model"
)

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	State  model.SessionState `json:"state,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for consultation sessions.
type Store interface {
	// CreateSession inserts a new session. It assigns an id when empty and
	// sets Version to 1.
	CreateSession(ctx context.Context, s *model.Session) error
	// LoadSession returns a copy of the stored session or ErrSessionNotFound.
	LoadSession(ctx context.Context, id string) (*model.Session, error)
	// SaveSession writes s if the stored version still equals s.Version and
	// then advances s.Version. A stale version yields ErrPersistenceConflict.
	SaveSession(ctx context.Context, s *model.Session) error
	// ListSessions returns sessions ordered by most recent update.
	ListSessions(ctx context.Context, filter SessionFilter) ([]*model.Session, error)
	// DeleteSessionsBefore removes sessions last updated before t.
	DeleteSessionsBefore(ctx context.Context, t time.Time) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// prepareCreate fills the fields every backend sets on insert.
func prepareCreate(s *model.Session) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	s.Version = 1
}

func encodeSession(s *model.Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, eris.Wrapf(err, "marshal session %s", s.ID)
	}
	return data, nil
}

func decodeSession(data []byte, version int64) (*model.Session, error) {
	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "unmarshal session")
	}
	s.Version = version
	return &s, nil
}

func notFound(backend, id string) error {
	return eris.Wrapf(model.ErrSessionNotFound, "%s: session %s", backend, id)
}

func conflict(backend, id string, version int64) error {
	return eris.Wrapf(model.ErrPersistenceConflict, "%s: session %s at version %d", backend, id, version)
}
