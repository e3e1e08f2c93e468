// Package tasks is the tool-calling API that access tokens protect: chore
// tasks assigned to kids and the allowance ledger that completing them
// credits.
package tasks

import (
	"time"

	"github.com/asaskevich/govalidator"

	derrors "choregate/pkg/domain-errors"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task is a chore assigned to a kid with a reward paid on completion.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssignedTo  string     `json:"assigned_to"`
	RewardCents int64      `json:"reward_cents"`
	Status      TaskStatus `json:"status"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateTaskRequest is the payload for creating a task.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  string `json:"assigned_to"`
	RewardCents int64  `json:"reward_cents"`
}

// Validate checks the request fields.
func (r CreateTaskRequest) Validate() error {
	if !govalidator.StringLength(r.Title, "1", "255") {
		return derrors.New(derrors.CodeBadRequest, "title is required and must be at most 255 characters")
	}
	if !govalidator.StringLength(r.AssignedTo, "1", "255") {
		return derrors.New(derrors.CodeBadRequest, "assigned_to is required")
	}
	if r.RewardCents < 0 {
		return derrors.New(derrors.CodeBadRequest, "reward_cents must not be negative")
	}
	return nil
}

// LedgerEntry records a single credit to a kid's allowance balance.
type LedgerEntry struct {
	ID          string    `json:"id"`
	KidID       string    `json:"kid_id"`
	TaskID      string    `json:"task_id"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// LedgerBalance is the summed balance for one kid.
type LedgerBalance struct {
	KidID        string `json:"kid_id"`
	BalanceCents int64  `json:"balance_cents"`
}
