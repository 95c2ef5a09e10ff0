package quota

import (
	"context"
	"sync"
)

// MutateFunc edits a record in place and reports whether it changed.
type MutateFunc func(q *UserQuota) (changed bool, err error)

// Store persists quota records keyed by telegram id. Records are created with defaults on
// first reference and never deleted.
type Store interface {
	GetOrCreate(ctx context.Context, id int64) (UserQuota, error)
	// Update runs fn on the current record under a per-key lock and persists the result
	// when fn reports a change. It returns the record as stored afterwards.
	Update(ctx context.Context, id int64, fn MutateFunc) (UserQuota, error)
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[int64]UserQuota
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]UserQuota)}
}

// GetOrCreate implements Store.
func (m *MemoryStore) GetOrCreate(_ context.Context, id int64) (UserQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(id), nil
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, id int64, fn MutateFunc) (UserQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.getOrCreateLocked(id)
	changed, err := fn(&q)
	if err != nil {
		return UserQuota{}, err
	}
	if changed {
		m.records[id] = q
	}
	return m.records[id], nil
}

// Put replaces a record; tests use it to seed state.
func (m *MemoryStore) Put(q UserQuota) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[q.TelegramID] = q
}

func (m *MemoryStore) getOrCreateLocked(id int64) UserQuota {
	q, ok := m.records[id]
	if !ok {
		q = NewUserQuota(id)
		m.records[id] = q
	}
	return q
}
