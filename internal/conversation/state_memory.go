package conversation

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// MemoryStateStore is an in-process StateStore for development and tests.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStateStore) Get(_ context.Context, key string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, nil
	}
	st := e.state
	st.OfferedSlots = append([]time.Time(nil), e.state.OfferedSlots...)
	return &st, nil
}

func (m *MemoryStateStore) Put(_ context.Context, key string, state State, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultOfferTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{state: state, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStateStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
