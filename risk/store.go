package risk

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrStoreClosed = errors.New("risk store closed")

// Store owns DailyRiskState entries. Implementations must return copies:
// callers may mutate what they get back without affecting the store.
type Store interface {
	// Get returns the state for k and whether it exists.
	Get(ctx context.Context, k Key) (DailyRiskState, bool, error)
	// Latest returns the user's most recent state strictly before day.
	Latest(ctx context.Context, userID, day string) (DailyRiskState, bool, error)
	Save(ctx context.Context, k Key, st DailyRiskState) error
	// List returns every stored day for a user, oldest first.
	List(ctx context.Context, userID string) ([]Entry, error)
	DeleteUser(ctx context.Context, userID string) error
	// Reset drops all state. Meant for tests and admin tooling.
	Reset(ctx context.Context) error
	Close() error
}

type Entry struct {
	Key   Key            `json:"key"`
	State DailyRiskState `json:"state"`
}

// MemoryStore is an in-process Store. Create it at startup, Close it at
// shutdown.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]map[string]DailyRiskState
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]map[string]DailyRiskState)}
}

func (m *MemoryStore) Get(ctx context.Context, k Key) (DailyRiskState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return DailyRiskState{}, false, ErrStoreClosed
	}
	st, ok := m.users[k.UserID][k.Day]
	if !ok {
		return DailyRiskState{}, false, nil
	}
	return st.Clone(), true, nil
}

func (m *MemoryStore) Latest(ctx context.Context, userID, day string) (DailyRiskState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return DailyRiskState{}, false, ErrStoreClosed
	}

	best := ""
	for d := range m.users[userID] {
		if d < day && d > best {
			best = d
		}
	}
	if best == "" {
		return DailyRiskState{}, false, nil
	}
	return m.users[userID][best].Clone(), true, nil
}

func (m *MemoryStore) Save(ctx context.Context, k Key, st DailyRiskState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	days, ok := m.users[k.UserID]
	if !ok {
		days = make(map[string]DailyRiskState)
		m.users[k.UserID] = days
	}
	days[k.Day] = st.Clone()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, userID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]Entry, 0, len(m.users[userID]))
	for d, st := range m.users[userID] {
		out = append(out, Entry{Key: Key{UserID: userID, Day: d}, State: st.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Day < out[j].Key.Day })
	return out, nil
}

func (m *MemoryStore) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.users, userID)
	return nil
}

func (m *MemoryStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.users = make(map[string]map[string]DailyRiskState)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.users = nil
	return nil
}
