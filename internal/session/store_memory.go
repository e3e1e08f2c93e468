package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"choregate/pkg/platform/sentinel"
)

type memorySession struct {
	values    map[string]string
	expiresAt time.Time
}

// InMemoryStore keeps sessions in a mutex-guarded map for development and
// tests. Expired sessions are dropped lazily on access.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	clock    func() time.Time
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*memorySession),
		clock:    time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *InMemoryStore) WithClock(clock func() time.Time) *InMemoryStore {
	s.clock = clock
	return s
}

func (s *InMemoryStore) Get(_ context.Context, sid, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(sid)
	if sess == nil {
		return "", fmt.Errorf("session %q: %w", sid, sentinel.ErrNotFound)
	}
	value, ok := sess.values[key]
	if !ok {
		return "", fmt.Errorf("session key %q: %w", key, sentinel.ErrNotFound)
	}
	return value, nil
}

func (s *InMemoryStore) Set(_ context.Context, sid, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(sid)
	if sess == nil {
		sess = &memorySession{values: make(map[string]string)}
		s.sessions[sid] = sess
	}
	sess.values[key] = value
	sess.expiresAt = s.clock().Add(TTL)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	return nil
}

// live returns the session if present and unexpired, purging it otherwise.
// Callers must hold the lock.
func (s *InMemoryStore) live(sid string) *memorySession {
	sess, ok := s.sessions[sid]
	if !ok {
		return nil
	}
	if s.clock().After(sess.expiresAt) {
		delete(s.sessions, sid)
		return nil
	}
	return sess
}
