package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"choregate/pkg/platform/sentinel"
)

// InMemoryStore keeps tasks and ledger entries in process memory. It backs
// tests and single-node deployments without a database.
type InMemoryStore struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	ledger map[string][]*LedgerEntry
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasks:  make(map[string]*Task),
		ledger: make(map[string][]*LedgerEntry),
	}
}

// SaveTask inserts or updates a task.
func (s *InMemoryStore) SaveTask(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

// FindTask returns the task with the given id.
func (s *InMemoryStore) FindTask(_ context.Context, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", id, sentinel.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

// ListTasks returns all tasks, optionally filtered to one kid, ordered by
// creation time.
func (s *InMemoryStore) ListTasks(_ context.Context, assignedTo string) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if assignedTo != "" && t.AssignedTo != assignedTo {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CompleteTask marks an open task completed and credits the ledger under the
// same lock.
func (s *InMemoryStore) CompleteTask(_ context.Context, id string, now time.Time) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", id, sentinel.ErrNotFound)
	}
	if t.Status == TaskStatusCompleted {
		return nil, fmt.Errorf("task %q: %w", id, sentinel.ErrAlreadyUsed)
	}

	completed := now
	t.Status = TaskStatusCompleted
	t.CompletedAt = &completed

	s.ledger[t.AssignedTo] = append(s.ledger[t.AssignedTo], &LedgerEntry{
		ID:          uuid.NewString(),
		KidID:       t.AssignedTo,
		TaskID:      t.ID,
		AmountCents: t.RewardCents,
		CreatedAt:   now,
	})

	cp := *t
	return &cp, nil
}

// Balance returns the summed ledger balance for a kid.
func (s *InMemoryStore) Balance(_ context.Context, kidID string) (*LedgerBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, e := range s.ledger[kidID] {
		sum += e.AmountCents
	}
	return &LedgerBalance{KidID: kidID, BalanceCents: sum}, nil
}

// ListLedger returns a kid's ledger entries, newest first.
func (s *InMemoryStore) ListLedger(_ context.Context, kidID string) ([]*LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.ledger[kidID]
	out := make([]*LedgerEntry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
