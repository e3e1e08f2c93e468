package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Service implements the task and ledger operations on top of a Store.
type Service struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time
	tracer trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService creates a task Service.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		clock:  time.Now,
		tracer: otel.Tracer("choregate/tasks"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a new task created by the given subject.
func (s *Service) Create(ctx context.Context, createdBy string, req CreateTaskRequest) (*Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Create",
		trace.WithAttributes(attribute.String("task.assigned_to", req.AssignedTo)))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	t := &Task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		RewardCents: req.RewardCents,
		Status:      TaskStatusOpen,
		CreatedBy:   createdBy,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.store.SaveTask(ctx, t); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "task created",
		"task_id", t.ID,
		"assigned_to", t.AssignedTo,
		"created_by", createdBy,
	)
	return t, nil
}

// List returns tasks, optionally filtered to one kid.
func (s *Service) List(ctx context.Context, assignedTo string) ([]*Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.List")
	defer span.End()

	return s.store.ListTasks(ctx, assignedTo)
}

// Get returns one task by id.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	return s.store.FindTask(ctx, id)
}

// Complete marks a task completed and credits the assigned kid's ledger.
func (s *Service) Complete(ctx context.Context, completedBy, id string) (*Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Complete",
		trace.WithAttributes(attribute.String("task.id", id)))
	defer span.End()

	t, err := s.store.CompleteTask(ctx, id, s.clock().UTC())
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "task completed",
		"task_id", t.ID,
		"assigned_to", t.AssignedTo,
		"reward_cents", t.RewardCents,
		"completed_by", completedBy,
	)
	return t, nil
}

// Balance returns the summed ledger balance for a kid.
func (s *Service) Balance(ctx context.Context, kidID string) (*LedgerBalance, error) {
	return s.store.Balance(ctx, kidID)
}

// Ledger returns a kid's ledger entries, newest first.
func (s *Service) Ledger(ctx context.Context, kidID string) ([]*LedgerEntry, error) {
	return s.store.ListLedger(ctx, kidID)
}
