package store

import (
	"context"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/discovery-engine/internal/model"
)

// DefaultMemorySize bounds the in-memory store when no size is configured.
const DefaultMemorySize = 10000

// MemoryStore is a bounded in-process Store. The least recently used
// session is evicted once the cache is full; sessions never leave the
// store by reference.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *model.Session]
}

// NewMemory returns a MemoryStore holding at most size sessions.
func NewMemory(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	cache, err := lru.NewWithEvict(size, func(id string, _ *model.Session) {
		zap.L().Debug("memory store: evicted session", zap.String("session_id", id))
	})
	if err != nil {
		return nil, eris.Wrap(err, "memory: new cache")
	}
	return &MemoryStore{cache: cache}, nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error {
	m.cache.Purge()
	return nil
}

func (m *MemoryStore) CreateSession(_ context.Context, sess *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess.ID != "" && m.cache.Contains(sess.ID) {
		return eris.Errorf("memory: session %s already exists", sess.ID)
	}
	prepareCreate(sess)
	m.cache.Add(sess.ID, sess.Clone())
	return nil
}

func (m *MemoryStore) LoadSession(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.cache.Get(id)
	if !ok {
		return nil, notFound("memory", id)
	}
	return sess.Clone(), nil
}

func (m *MemoryStore) SaveSession(_ context.Context, sess *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.cache.Peek(sess.ID)
	if !ok {
		return notFound("memory", sess.ID)
	}
	if stored.Version != sess.Version {
		return conflict("memory", sess.ID, sess.Version)
	}
	next := sess.Clone()
	next.Version = sess.Version + 1
	m.cache.Add(sess.ID, next)
	sess.Version = next.Version
	return nil
}

func (m *MemoryStore) ListSessions(_ context.Context, filter SessionFilter) ([]*model.Session, error) {
	m.mu.Lock()
	var all []*model.Session
	for _, id := range m.cache.Keys() {
		sess, ok := m.cache.Peek(id)
		if !ok || (filter.State != "" && sess.State != filter.State) {
			continue
		}
		all = append(all, sess.Clone())
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID < all[j].ID
	})

	out := []*model.Session{}
	start := max(filter.Offset, 0)
	if start >= len(all) {
		return out, nil
	}
	all = all[start:]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return append(out, all...), nil
}

func (m *MemoryStore) DeleteSessionsBefore(_ context.Context, t time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, id := range m.cache.Keys() {
		if sess, ok := m.cache.Peek(id); ok && sess.UpdatedAt.Before(t) {
			m.cache.Remove(id)
			n++
		}
	}
	return n, nil
}
