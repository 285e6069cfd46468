package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	task := newTestTask()
	require.NoError(t, s.Create(ctx, task))
	assert.Error(t, s.Create(ctx, task), "duplicate IDs are rejected")

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	got.Note = "mutated"
	again, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Note, "returned tasks are copies")

	updated, err := s.Update(ctx, task.ID, ProgressUpdate(1, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CompletedCount)

	require.NoError(t, s.Delete(ctx, task.ID))
	_, err = s.Get(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, task.ID), ErrNotFound)
	_, err = s.Update(ctx, task.ID, ProgressUpdate(2, 4))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateRejectsInvalidTask(t *testing.T) {
	t.Parallel()

	task := newTestTask()
	task.ProjectID = ""
	assert.ErrorIs(t, NewMemoryStore().Create(context.Background(), task), ErrInvalidInput)
}

func TestMemoryStore_UpdateOnTerminalTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	task := newTestTask()
	require.NoError(t, s.Create(ctx, task))
	_, err := s.Update(ctx, task.ID, AbortUpdate("stop"))
	require.NoError(t, err)

	_, err = s.Update(ctx, task.ID, CompleteUpdate(3, nil, "done"))
	assert.ErrorIs(t, err, ErrTaskTerminal)

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, got.Status)
	assert.Equal(t, "stop", got.Note)
}

func TestMemoryStore_ConcurrentCompletionRace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	task := newTestTask()
	require.NoError(t, s.Create(ctx, task))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []Update{AbortUpdate("user"), CompleteUpdate(2, nil, "done")} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Update(ctx, task.ID, u)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrTaskTerminal)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one terminal write wins")
}

func TestMemoryStore_List(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		task := newTestTask()
		task.CreateAt = base.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			task.TaskType = TypeAnswerGeneration
		}
		require.NoError(t, s.Create(ctx, task))
	}
	other := newTestTask()
	other.ProjectID = "project-2"
	require.NoError(t, s.Create(ctx, other))

	tasks, total, err := s.List(ctx, ListQuery{ProjectID: "project-1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, tasks, 2)
	assert.True(t, tasks[0].CreateAt.After(tasks[1].CreateAt), "newest first")
	assert.Equal(t, base.Add(4*time.Minute), tasks[0].CreateAt)

	tasks, total, err = s.List(ctx, ListQuery{ProjectID: "project-1", Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, tasks, 1)

	tasks, total, err = s.List(ctx, ListQuery{ProjectID: "project-1", Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, tasks)

	tasks, total, err = s.List(ctx, ListQuery{ProjectID: "project-1", TaskType: TypeAnswerGeneration})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, tasks, 3)

	processing := StatusProcessing
	_, total, err = s.List(ctx, ListQuery{ProjectID: "project-2", Status: &processing})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMemoryStore_ListProcessing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	fresh := newTestTask()
	fresh.UpdatedAt = now.Add(-time.Minute)
	stale := newTestTask()
	stale.UpdatedAt = now.Add(-2 * time.Hour)
	done := newTestTask()
	done.Status = StatusCompleted
	end := now
	done.EndTime = &end
	for _, task := range []*Task{fresh, stale, done} {
		require.NoError(t, s.Create(ctx, task))
	}

	all, err := s.ListProcessing(ctx, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{fresh.ID, stale.ID}, taskIDs(all))

	old, err := s.ListProcessing(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stale.ID}, taskIDs(old))
}

func TestListQueryNormalize(t *testing.T) {
	t.Parallel()

	q := ListQuery{}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.Limit)
	assert.Equal(t, MaxPageSize, ListQuery{Limit: 1000}.Normalize().Limit)
	assert.Equal(t, 40, ListQuery{Page: 3, Limit: 20}.Offset())
}

func taskIDs(tasks []*Task) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
