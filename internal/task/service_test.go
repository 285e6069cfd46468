package task

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type creatorFunc func(ctx context.Context, spec CreateSpec) (uuid.UUID, error)

func (f creatorFunc) CreateAndRun(ctx context.Context, spec CreateSpec) (uuid.UUID, error) {
	return f(ctx, spec)
}

func TestService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	existing := newTestTask()
	require.NoError(t, store.Create(ctx, existing))

	var gotSpec CreateSpec
	svc := NewService(store, creatorFunc(func(ctx context.Context, spec CreateSpec) (uuid.UUID, error) {
		gotSpec = spec
		return existing.ID, nil
	}), testLogger())

	t.Run("create delegates to the dispatcher", func(t *testing.T) {
		id, err := svc.Create(ctx, createSpec(TypeTextProcessing))
		require.NoError(t, err)
		assert.Equal(t, existing.ID, id)
		assert.Equal(t, TypeTextProcessing, gotSpec.TaskType)
	})

	t.Run("empty update is rejected", func(t *testing.T) {
		_, err := svc.Update(ctx, existing.ID, Update{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("update then abort then reject", func(t *testing.T) {
		note := "halfway"
		updated, err := svc.Update(ctx, existing.ID, Update{Note: &note})
		require.NoError(t, err)
		assert.Equal(t, "halfway", updated.Note)

		aborted, err := svc.Abort(ctx, existing.ID, "")
		require.NoError(t, err)
		assert.Equal(t, StatusAborted, aborted.Status)
		assert.Equal(t, "aborted", aborted.Note)

		_, err = svc.Abort(ctx, existing.ID, "again")
		assert.ErrorIs(t, err, ErrTaskTerminal)
		_, err = svc.Update(ctx, existing.ID, Update{Note: &note})
		assert.ErrorIs(t, err, ErrTaskTerminal)
	})

	t.Run("get list delete", func(t *testing.T) {
		tasks, total, err := svc.List(ctx, ListQuery{ProjectID: existing.ProjectID})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, tasks, 1)

		require.NoError(t, svc.Delete(ctx, existing.ID))
		_, err = svc.Get(ctx, existing.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, svc.Delete(ctx, existing.ID), ErrNotFound)
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	noop := HandlerFunc(func(ctx context.Context, _ *Task, p *Progress) (*Result, error) { return nil, nil })

	require.NoError(t, r.Register(TypeTextProcessing, noop))
	require.NoError(t, r.Register(TypeAnswerGeneration, noop))
	assert.Error(t, r.Register(TypeTextProcessing, noop))
	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register(TypeDataDistillation, nil))

	_, ok := r.Lookup(TypeTextProcessing)
	assert.True(t, ok)
	_, ok = r.Lookup(TypeDatasetEvaluation)
	assert.False(t, ok)
	assert.Equal(t, []Type{TypeAnswerGeneration, TypeTextProcessing}, r.Types())
}
