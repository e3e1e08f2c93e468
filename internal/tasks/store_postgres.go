package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"choregate/pkg/platform/sentinel"
)

// PostgresStore persists tasks and ledger entries in postgres.
//
// Expected schema:
//
//	CREATE TABLE tasks (
//	    id           TEXT PRIMARY KEY,
//	    title        TEXT NOT NULL,
//	    description  TEXT NOT NULL DEFAULT '',
//	    assigned_to  TEXT NOT NULL,
//	    reward_cents BIGINT NOT NULL,
//	    status       TEXT NOT NULL,
//	    created_by   TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    completed_at TIMESTAMPTZ
//	);
//
//	CREATE TABLE ledger_entries (
//	    id           TEXT PRIMARY KEY,
//	    kid_id       TEXT NOT NULL,
//	    task_id      TEXT NOT NULL REFERENCES tasks (id),
//	    amount_cents BIGINT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX ledger_entries_kid_idx ON ledger_entries (kid_id);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore on an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SaveTask inserts or updates a task.
func (s *PostgresStore) SaveTask(ctx context.Context, t *Task) error {
	const q = `
		INSERT INTO tasks (id, title, description, assigned_to, reward_cents, status, created_by, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			assigned_to = EXCLUDED.assigned_to,
			reward_cents = EXCLUDED.reward_cents,
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at`

	_, err := s.db.ExecContext(ctx, q,
		t.ID, t.Title, t.Description, t.AssignedTo, t.RewardCents,
		t.Status, t.CreatedBy, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// FindTask returns the task with the given id.
func (s *PostgresStore) FindTask(ctx context.Context, id string) (*Task, error) {
	const q = `
		SELECT id, title, description, assigned_to, reward_cents, status, created_by, created_at, completed_at
		FROM tasks WHERE id = $1`

	return scanTask(s.db.QueryRowContext(ctx, q, id))
}

// ListTasks returns all tasks, optionally filtered to one kid.
func (s *PostgresStore) ListTasks(ctx context.Context, assignedTo string) ([]*Task, error) {
	const q = `
		SELECT id, title, description, assigned_to, reward_cents, status, created_by, created_at, completed_at
		FROM tasks
		WHERE ($1 = '' OR assigned_to = $1)
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, q, assignedTo)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CompleteTask marks an open task completed and credits the ledger in one
// transaction. The row lock on the task keeps two concurrent completions
// from double-crediting.
func (s *PostgresStore) CompleteTask(ctx context.Context, id string, now time.Time) (*Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin complete task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const lockQ = `
		SELECT id, title, description, assigned_to, reward_cents, status, created_by, created_at, completed_at
		FROM tasks WHERE id = $1 FOR UPDATE`

	t, err := scanTask(tx.QueryRowContext(ctx, lockQ, id))
	if err != nil {
		return nil, err
	}
	if t.Status == TaskStatusCompleted {
		return nil, fmt.Errorf("task %q: %w", id, sentinel.ErrAlreadyUsed)
	}

	completed := now
	t.Status = TaskStatusCompleted
	t.CompletedAt = &completed

	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = $2, completed_at = $3 WHERE id = $1`,
		t.ID, t.Status, t.CompletedAt,
	); err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, kid_id, task_id, amount_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), t.AssignedTo, t.ID, t.RewardCents, now,
	); err != nil {
		return nil, fmt.Errorf("credit ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit complete task: %w", err)
	}
	return t, nil
}

// Balance returns the summed ledger balance for a kid.
func (s *PostgresStore) Balance(ctx context.Context, kidID string) (*LedgerBalance, error) {
	const q = `SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE kid_id = $1`

	b := &LedgerBalance{KidID: kidID}
	if err := s.db.QueryRowContext(ctx, q, kidID).Scan(&b.BalanceCents); err != nil {
		return nil, fmt.Errorf("ledger balance: %w", err)
	}
	return b, nil
}

// ListLedger returns a kid's ledger entries, newest first.
func (s *PostgresStore) ListLedger(ctx context.Context, kidID string) ([]*LedgerEntry, error) {
	const q = `
		SELECT id, kid_id, task_id, amount_cents, created_at
		FROM ledger_entries WHERE kid_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, kidID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []*LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.KidID, &e.TaskID, &e.AmountCents, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		t           Task
		completedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.RewardCents,
		&t.Status, &t.CreatedBy, &t.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}
