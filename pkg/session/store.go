package session

import (
	"context"
	"sort"
	"sync"
)

// Store keeps call sessions keyed by call identifier. Implementations return
// copies: a session is only changed by writing it back with Save.
type Store interface {
	// Get returns the session for callSid, or ok=false when none is open.
	Get(ctx context.Context, callSid string) (sess *CallSession, ok bool, err error)
	// Save creates or replaces the session.
	Save(ctx context.Context, sess *CallSession) error
	// Delete removes the session. Deleting an unknown call is not an error.
	Delete(ctx context.Context, callSid string) error
	// List returns every open session ordered by call identifier.
	List(ctx context.Context) ([]*CallSession, error)
	// Count returns the number of open sessions.
	Count(ctx context.Context) (int, error)
}

// Make sure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// MemoryStore is the process-local Store.
type MemoryStore struct {
	sessions map[string]*CallSession
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*CallSession),
	}
}

func (m *MemoryStore) Get(_ context.Context, callSid string) (*CallSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[callSid]
	if !ok {
		return nil, false, nil
	}
	return sess.Clone(), true, nil
}

func (m *MemoryStore) Save(_ context.Context, sess *CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.CallSid] = sess.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, callSid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, callSid)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*CallSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*CallSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallSid < out[j].CallSid })
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}
