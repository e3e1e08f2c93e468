package user

import (
	"context"
	"fmt"
	"sync"

	"choregate/pkg/platform/sentinel"
)

// InMemoryStore keeps users in memory for development and tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]User
	byKey map[string]string // username -> id
}

// NewInMemoryStore constructs an empty in-memory user store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[string]User),
		byKey: make(map[string]string),
	}
}

func (s *InMemoryStore) Save(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[u.ID] = u
	s.byKey[u.Username] = u.ID
	return nil
}

func (s *InMemoryStore) FindByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[username]
	if !ok {
		return User{}, fmt.Errorf("user %q: %w", username, sentinel.ErrNotFound)
	}
	return s.byID[id], nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, fmt.Errorf("user id %q: %w", id, sentinel.ErrNotFound)
	}
	return u, nil
}
