package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/medibook/pkg/apperrors"
)

// Store persists session snapshots. Update applies fn to the current snapshot
// and saves the result atomically; when fn fails nothing is written.
type Store interface {
	Create(ctx context.Context, s State) error
	Get(ctx context.Context, id uuid.UUID) (State, error)
	Update(ctx context.Context, id uuid.UUID, fn func(State) (State, error)) (State, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Sessions expire ttl after their
// last write.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = memoryEntry{state: s, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) lookup(id uuid.UUID) (State, bool) {
	e, ok := m.sessions[id]
	if !ok {
		return State{}, false
	}
	if m.ttl > 0 && m.now().After(e.expiresAt) {
		delete(m.sessions, id)
		return State{}, false
	}
	return e.state, true
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.lookup(id)
	if !ok {
		return State{}, apperrors.NotFound("booking session")
	}
	return s, nil
}

func (m *MemoryStore) Update(_ context.Context, id uuid.UUID, fn func(State) (State, error)) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.lookup(id)
	if !ok {
		return State{}, apperrors.NotFound("booking session")
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	m.sessions[id] = memoryEntry{state: next, expiresAt: m.now().Add(m.ttl)}
	return next, nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(id); !ok {
		return apperrors.NotFound("booking session")
	}
	delete(m.sessions, id)
	return nil
}
