package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Creator starts tasks. Dispatcher implements it.
type Creator interface {
	CreateAndRun(ctx context.Context, spec CreateSpec) (uuid.UUID, error)
}

// Service is the task API used by the HTTP layer: it creates tasks through
// the dispatcher and reads or edits records in the store.
type Service struct {
	store   Store
	creator Creator
	logger  *slog.Logger
}

// NewService creates a Service.
func NewService(store Store, creator Creator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		creator: creator,
		logger:  logger.With("component", "task_service"),
	}
}

// Create creates a task and starts its handler.
func (s *Service) Create(ctx context.Context, spec CreateSpec) (uuid.UUID, error) {
	return s.creator.CreateAndRun(ctx, spec)
}

// Get returns a task by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// List returns a page of a project's tasks and the total number of matches.
func (s *Service) List(ctx context.Context, q ListQuery) ([]*Task, int, error) {
	tasks, total, err := s.store.List(ctx, q.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// Update applies an external edit. Terminal tasks reject every update.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u Update) (*Task, error) {
	if u.IsEmpty() {
		return nil, fmt.Errorf("%w: update has no fields", ErrInvalidInput)
	}
	t, err := s.store.Update(ctx, id, u)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return t, nil
}

// Abort marks a Processing task Aborted. Its handler stops scheduling new
// items the next time it reports progress; items already running finish.
func (s *Service) Abort(ctx context.Context, id uuid.UUID, reason string) (*Task, error) {
	t, err := s.store.Update(ctx, id, AbortUpdate(reason))
	if err != nil {
		return nil, fmt.Errorf("failed to abort task: %w", err)
	}
	s.logger.Info("task aborted", "task_id", id, "reason", t.Note)
	return t, nil
}

// Delete removes a task record. A handler still running for it stops
// scheduling new items on its next progress write.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.logger.Info("task deleted", "task_id", id)
	return nil
}
