package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/moviebot/core/logger"
)

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore is an expiring in-process Store. Expired entries are hidden on read and
// purged by a background janitor.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]memoryEntry

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore returns a store whose entries live ttl after their last write.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return newMemoryStore(ttl, time.Now)
}

func newMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      now,
		sessions: make(map[int64]memoryEntry),
		stop:     make(chan struct{}),
	}
}

// StartJanitor purges expired entries every interval until Close is called.
func (m *MemoryStore) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.purge(); n > 0 {
					logger.SVCSession.Debug("sessions purged",
						slog.String("event", "session.purge"),
						slog.Int("count", n),
					)
				}
			case <-m.stop:
				return
			}
		}
	}()
}

// Close stops the janitor.
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, userID int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveLocked(userID), nil
}

// Merge implements Store.
func (m *MemoryStore) Merge(_ context.Context, userID int64, u Update) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := u.Apply(m.liveLocked(userID))
	m.sessions[userID] = memoryEntry{session: s, expiresAt: m.now().Add(m.ttl)}
	return s, nil
}

// ClearState implements Store.
func (m *MemoryStore) ClearState(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[userID]
	if !ok || !m.now().Before(entry.expiresAt) {
		return nil
	}
	entry.session.State = StateIdle
	entry.expiresAt = m.now().Add(m.ttl)
	m.sessions[userID] = entry
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) liveLocked(userID int64) Session {
	entry, ok := m.sessions[userID]
	if !ok {
		return Session{}
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.sessions, userID)
		return Session{}
	}
	return entry.session
}

func (m *MemoryStore) purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, entry := range m.sessions {
		if !now.Before(entry.expiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
