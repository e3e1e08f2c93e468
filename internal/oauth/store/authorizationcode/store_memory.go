package authorizationcode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"choregate/internal/oauth/models"
	"choregate/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return ErrNotFound (wrapped) when the requested code does not exist
// - Return ErrExpired (wrapped) when the code's deadline has passed
// - Return nil for successful operations
//
// The store exclusively owns AuthorizationCode records for their lifetime;
// no other component mutates them.

// InMemoryStore holds pending authorization codes behind a single mutex.
// A coarse lock over the whole map is fine here: code issuance and exchange
// are low-throughput paths, and the lock is what guarantees a code can never
// be consumed twice under concurrent requests.
type InMemoryStore struct {
	mu    sync.Mutex
	codes map[string]*models.AuthorizationCode
}

// New constructs an empty in-memory authorization code store.
func New() *InMemoryStore {
	return &InMemoryStore{
		codes: make(map[string]*models.AuthorizationCode),
	}
}

// Create generates a cryptographically random code, records the grant with
// its absolute expiry deadline, and returns the code.
func (s *InMemoryStore) Create(_ context.Context, grant models.AuthorizationRequest, subjectID string, now time.Time) (string, error) {
	code := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = &models.AuthorizationCode{
		Code:                code,
		ClientID:            grant.ClientID,
		RedirectURI:         grant.RedirectURI,
		Scope:               grant.Scope,
		CodeChallenge:       grant.CodeChallenge,
		CodeChallengeMethod: grant.CodeChallengeMethod,
		SubjectID:           subjectID,
		IssuedAt:            now,
		ExpiresAt:           now.Add(models.AuthorizationCodeTTL),
	}
	return code, nil
}

// Consume looks up a code and, while still holding the lock, runs the
// caller's validation over the record. On validation success the code is
// deleted (read-once) and the record returned. On validation failure the
// code stays in place: only explicit success or TTL expiry removes it.
// Expired codes are purged as a side effect of the failed lookup.
func (s *InMemoryStore) Consume(_ context.Context, code string, now time.Time, validate func(*models.AuthorizationCode) error) (*models.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.codes[code]
	if !ok {
		return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}

	if record.Expired(now) {
		delete(s.codes, code)
		return nil, fmt.Errorf("authorization code expired: %w", sentinel.ErrExpired)
	}

	if err := validate(record); err != nil {
		return nil, err
	}

	delete(s.codes, code)
	return record, nil
}

// DeleteExpired removes all codes whose deadline is at or before the given
// time and returns how many were removed. This bounds memory; correctness
// does not depend on it because Consume already rejects expired codes.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for code, record := range s.codes {
		if !record.ExpiresAt.After(now) {
			delete(s.codes, code)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports the number of codes currently held. Used for the pending-codes
// gauge and by tests.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
