package tasks

import (
	"context"
	"time"
)

// Store persists tasks and the allowance ledger.
type Store interface {
	// SaveTask inserts or updates a task.
	SaveTask(ctx context.Context, t *Task) error
	// FindTask returns the task with the given id, or sentinel.ErrNotFound.
	FindTask(ctx context.Context, id string) (*Task, error)
	// ListTasks returns all tasks, optionally filtered to one kid.
	ListTasks(ctx context.Context, assignedTo string) ([]*Task, error)
	// CompleteTask marks an open task completed and credits the assigned
	// kid's ledger atomically. Completing an already-completed task returns
	// sentinel.ErrAlreadyUsed and leaves the ledger unchanged.
	CompleteTask(ctx context.Context, id string, now time.Time) (*Task, error)
	// Balance returns the summed ledger balance for a kid. Kids with no
	// entries have a zero balance, not an error.
	Balance(ctx context.Context, kidID string) (*LedgerBalance, error)
	// ListLedger returns a kid's ledger entries, newest first.
	ListLedger(ctx context.Context, kidID string) ([]*LedgerEntry, error)
}
