package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Default and maximum page sizes for List
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store defines the interface for persisting tasks.
// Version: 2.0
type Store interface {
	// Create persists a new task. The task must pass Validate.
	Create(ctx context.Context, t *Task) error

	// Get retrieves a task by ID.
	// Returns ErrNotFound if the task does not exist.
	Get(ctx context.Context, id uuid.UUID) (*Task, error)

	// List returns one page of a project's tasks ordered by creation time
	// descending, together with the total number of matching tasks.
	List(ctx context.Context, q ListQuery) ([]*Task, int, error)

	// Update atomically applies a partial update using Apply semantics and
	// returns the updated task.
	// Returns ErrNotFound if the task does not exist and ErrTaskTerminal if
	// it already reached a terminal state.
	Update(ctx context.Context, id uuid.UUID, u Update) (*Task, error)

	// Delete removes a task.
	// Returns ErrNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListProcessing retrieves tasks in the Processing state.
	// If olderThan is non-zero, only tasks not updated for at least that
	// long are returned.
	ListProcessing(ctx context.Context, olderThan time.Duration) ([]*Task, error)
}

// ListQuery filters and paginates List.
type ListQuery struct {
	ProjectID string
	TaskType  Type
	Status    *Status
	Page      int
	Limit     int
}

// Normalize applies pagination defaults: pages start at 1 and the page size
// is clamped to [1, MaxPageSize].
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}

// Offset returns the number of rows to skip for the query's page.
func (q ListQuery) Offset() int {
	n := q.Normalize()
	return (n.Page - 1) * n.Limit
}

// Matches reports whether t passes the query's filters.
func (q ListQuery) Matches(t *Task) bool {
	if q.ProjectID != "" && t.ProjectID != q.ProjectID {
		return false
	}
	if q.TaskType != "" && t.TaskType != q.TaskType {
		return false
	}
	if q.Status != nil && t.Status != *q.Status {
		return false
	}
	return true
}
