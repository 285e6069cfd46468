package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory. It backs the "memory"
// database driver and the package tests; state is lost on restart.
type MemoryStore struct {
	mutex sync.RWMutex
	tasks map[uuid.UUID]*Task
	now   func() time.Time
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[uuid.UUID]*Task),
		now:   time.Now,
	}
}

// Create persists a copy of t.
func (s *MemoryStore) Create(ctx context.Context, t *Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Get returns a copy of the stored task.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// List returns a page of matching tasks, newest first.
func (s *MemoryStore) List(ctx context.Context, q ListQuery) ([]*Task, int, error) {
	q = q.Normalize()

	s.mutex.RLock()
	matching := make([]*Task, 0)
	for _, t := range s.tasks {
		if q.Matches(t) {
			matching = append(matching, t.Clone())
		}
	}
	s.mutex.RUnlock()

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].CreateAt.After(matching[j].CreateAt)
	})

	total := len(matching)
	start := q.Offset()
	if start >= total {
		return []*Task{}, total, nil
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return matching[start:end], total, nil
}

// Update applies u under the store lock.
func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, u Update) (*Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := Apply(t, u, s.now()); err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// Delete removes the task.
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// ListProcessing returns processing tasks, optionally only stale ones.
func (s *MemoryStore) ListProcessing(ctx context.Context, olderThan time.Duration) ([]*Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := s.now()
	var processing []*Task
	for _, t := range s.tasks {
		if t.Status != StatusProcessing {
			continue
		}
		if olderThan == 0 || now.Sub(t.UpdatedAt) >= olderThan {
			processing = append(processing, t.Clone())
		}
	}
	sort.Slice(processing, func(i, j int) bool {
		return processing[i].CreateAt.Before(processing[j].CreateAt)
	})
	return processing, nil
}
