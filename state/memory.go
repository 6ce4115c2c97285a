package state

import (
	"context"
	"sync"
	"time"

	"github.com/oneagenthq/oneagent/llm"
)

type memorySession struct {
	messages  []llm.Message
	updatedAt time.Time
}

// MemoryStore keeps session history in process memory. Sessions older than
// the optional TTL are dropped on access.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	ttl      time.Duration
}

// NewMemoryStore creates an empty in-memory store. A ttl of zero means
// sessions never expire.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
	}
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, msgs ...llm.Message) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || m.expired(s) {
		s = &memorySession{}
		m.sessions[sessionID] = s
	}
	s.messages = append(s.messages, msgs...)
	s.updatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]llm.Message, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok || m.expired(s) {
		return []llm.Message{}, nil
	}
	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// CleanupExpired removes all expired sessions and returns how many were dropped.
func (m *MemoryStore) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			count++
		}
	}
	return count
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) expired(s *memorySession) bool {
	return m.ttl > 0 && time.Since(s.updatedAt) > m.ttl
}
