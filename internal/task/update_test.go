package task

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func statusPtr(s Status) *Status { return &s }

func TestApply_ProgressAndCompletion(t *testing.T) {
	t.Parallel()

	task := newTestTask()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, Apply(task, ProgressUpdate(2, 5), now))
	assert.Equal(t, 2, task.CompletedCount)
	assert.Equal(t, 5, task.TotalCount)
	assert.Equal(t, "processed 2/5", task.Note)
	assert.Nil(t, task.EndTime)
	assert.Equal(t, now, task.UpdatedAt)

	require.NoError(t, Apply(task, CompleteUpdate(5, json.RawMessage(`{"ok":true}`), "done"), now))
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, 5, task.CompletedCount)
	require.NotNil(t, task.EndTime)
	assert.Equal(t, now, *task.EndTime)
	assert.JSONEq(t, `{"ok":true}`, string(task.Detail))
}

func TestApply_TerminalTaskRejectsEveryUpdate(t *testing.T) {
	t.Parallel()

	for _, terminal := range []Update{CompleteUpdate(1, nil, "done"), FailUpdate("boom"), AbortUpdate("")} {
		task := newTestTask()
		require.NoError(t, Apply(task, terminal, time.Now()))
		before := task.Clone()

		updates := []Update{
			ProgressUpdate(1, 1),
			{Note: new(string)},
			{Status: statusPtr(StatusProcessing)},
			FailUpdate("late failure"),
			CompleteUpdate(3, nil, "late completion"),
		}
		for _, u := range updates {
			err := Apply(task, u, time.Now().Add(time.Hour))
			assert.ErrorIs(t, err, ErrTaskTerminal)
		}
		assert.Equal(t, before, task, "terminal task must not change")
	}
}

func TestApply_EndTimeWrittenOnce(t *testing.T) {
	t.Parallel()

	task := newTestTask()
	end := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	u := FailUpdate("boom")
	u.EndTime = &end

	require.NoError(t, Apply(task, u, time.Now()))
	require.NotNil(t, task.EndTime)
	assert.Equal(t, end, *task.EndTime)
	assert.Equal(t, "boom", task.Note)
	assert.JSONEq(t, `{"error":"boom"}`, string(task.Detail))
}

func TestApply_CounterRules(t *testing.T) {
	t.Parallel()

	task := newTestTask()
	require.NoError(t, Apply(task, ProgressUpdate(3, 5), time.Now()))
	before := task.Clone()

	err := Apply(task, Update{CompletedCount: intPtr(2)}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidInput, "completed count must not decrease")

	err = Apply(task, Update{CompletedCount: intPtr(6)}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidInput, "completed count must not exceed total")

	err = Apply(task, Update{TotalCount: intPtr(2)}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidInput, "total cannot drop below completed")

	assert.Equal(t, before, task)
}

func TestUpdateValidate(t *testing.T) {
	t.Parallel()

	end := time.Now()
	assert.NoError(t, Update{}.Validate())
	assert.ErrorIs(t, Update{Status: statusPtr(9)}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Update{CompletedCount: intPtr(-1)}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Update{TotalCount: intPtr(-1)}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Update{EndTime: &end}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Update{Detail: []byte("nope")}.Validate(), ErrInvalidInput)

	assert.True(t, Update{}.IsEmpty())
	assert.False(t, AbortUpdate("").IsEmpty())
	assert.Equal(t, "aborted", *AbortUpdate("").Note)
}
