package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MockStore wraps a MemoryStore and lets tests override individual methods
// through the Fn fields. Unset fields fall through to the memory store.
type MockStore struct {
	*MemoryStore

	CreateFn         func(ctx context.Context, t *Task) error
	GetFn            func(ctx context.Context, id uuid.UUID) (*Task, error)
	ListFn           func(ctx context.Context, q ListQuery) ([]*Task, int, error)
	UpdateFn         func(ctx context.Context, id uuid.UUID, u Update) (*Task, error)
	DeleteFn         func(ctx context.Context, id uuid.UUID) error
	ListProcessingFn func(ctx context.Context, olderThan time.Duration) ([]*Task, error)
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)

// NewMockStore creates a MockStore backed by an empty MemoryStore.
func NewMockStore() *MockStore {
	return &MockStore{MemoryStore: NewMemoryStore()}
}

// Create calls CreateFn if set.
func (m *MockStore) Create(ctx context.Context, t *Task) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, t)
	}
	return m.MemoryStore.Create(ctx, t)
}

// Get calls GetFn if set.
func (m *MockStore) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	return m.MemoryStore.Get(ctx, id)
}

// List calls ListFn if set.
func (m *MockStore) List(ctx context.Context, q ListQuery) ([]*Task, int, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, q)
	}
	return m.MemoryStore.List(ctx, q)
}

// Update calls UpdateFn if set.
func (m *MockStore) Update(ctx context.Context, id uuid.UUID, u Update) (*Task, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, u)
	}
	return m.MemoryStore.Update(ctx, id, u)
}

// Delete calls DeleteFn if set.
func (m *MockStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return m.MemoryStore.Delete(ctx, id)
}

// ListProcessing calls ListProcessingFn if set.
func (m *MockStore) ListProcessing(ctx context.Context, olderThan time.Duration) ([]*Task, error) {
	if m.ListProcessingFn != nil {
		return m.ListProcessingFn(ctx, olderThan)
	}
	return m.MemoryStore.ListProcessing(ctx, olderThan)
}
