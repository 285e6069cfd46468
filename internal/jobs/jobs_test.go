package jobs

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/dataset-forge/internal/batch"
	"github.com/phrazzld/dataset-forge/internal/generation"
	"github.com/phrazzld/dataset-forge/internal/mocks"
	"github.com/phrazzld/dataset-forge/internal/task"
	"github.com/phrazzld/dataset-forge/internal/testutils"
)

const testModelInfo = `{"provider_id":"openai","model_name":"gpt-4o-mini","api_key":"sk-test"}`

type harness struct {
	dispatcher *task.Dispatcher
	store      *task.MemoryStore
	factory    *mocks.MockFactory
	logs       *testutils.LogRecorder
}

func newHarness(t *testing.T, client generation.Client, concurrency int) *harness {
	t.Helper()

	store := task.NewMemoryStore()
	factory := mocks.NewMockFactory(client)
	logs := testutils.NewLogRecorder()
	registry := task.NewRegistry()
	require.NoError(t, Register(registry, Deps{
		Models:      factory,
		Concurrency: concurrency,
		Retries:     1,
		RetryDelay:  0,
		Logger:      logs.Logger(),
	}))

	d := task.NewDispatcher(store, registry, task.DispatcherConfig{}, logs.Logger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
	return &harness{dispatcher: d, store: store, factory: factory, logs: logs}
}

func (h *harness) create(t *testing.T, taskType task.Type, language string, detail any) (uuid.UUID, error) {
	t.Helper()
	raw, err := json.Marshal(detail)
	require.NoError(t, err)
	return h.dispatcher.CreateAndRun(context.Background(), task.CreateSpec{
		ProjectID: "project-1",
		TaskType:  taskType,
		ModelInfo: json.RawMessage(testModelInfo),
		Language:  language,
		Detail:    raw,
	})
}

// finished waits for every handler and returns the stored task.
func (h *harness) finished(t *testing.T, id uuid.UUID) *task.Task {
	t.Helper()
	h.dispatcher.Wait()
	got, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return got
}

func decodeDetail[P, T, R any](t *testing.T, got *task.Task) Detail[P, T, R] {
	t.Helper()
	var d Detail[P, T, R]
	require.NoError(t, json.Unmarshal(got.Detail, &d))
	return d
}

func TestRegister(t *testing.T) {
	registry := task.NewRegistry()
	require.NoError(t, Register(registry, Deps{Models: mocks.NewMockFactory(mocks.NewMockClient())}))
	assert.Equal(t, []task.Type{
		task.TypeAnswerGeneration,
		task.TypeDataDistillation,
		task.TypeDatasetEvaluation,
		task.TypeQuestionGeneration,
		task.TypeTextProcessing,
	}, registry.Types())

	assert.Error(t, Register(task.NewRegistry(), Deps{}), "a model factory is required")
	assert.Error(t, Register(registry, Deps{Models: mocks.NewMockFactory(nil)}), "types register once")
}

func TestModelJobs_CreateValidation(t *testing.T) {
	h := newHarness(t, mocks.NewMockClient(), 2)
	ctx := context.Background()

	_, err := h.dispatcher.CreateAndRun(ctx, task.CreateSpec{
		ProjectID: "project-1",
		TaskType:  task.TypeQuestionGeneration,
		ModelInfo: json.RawMessage(`{"provider_id":"openai"}`),
		Detail:    json.RawMessage(`{"chunks":[{"id":"c1","text":"t"}]}`),
	})
	assert.ErrorIs(t, err, task.ErrInvalidInput, "model name is required")

	_, err = h.create(t, task.TypeQuestionGeneration, "", map[string]any{"chunks": []any{}})
	assert.ErrorIs(t, err, task.ErrInvalidInput, "at least one chunk")

	_, err = h.create(t, task.TypeDatasetEvaluation, "", map[string]any{
		"records": []map[string]string{{"id": "r1", "question": "q"}},
	})
	assert.ErrorIs(t, err, task.ErrInvalidInput, "answer is required")

	_, total, err := h.store.List(ctx, task.ListQuery{ProjectID: "project-1"})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestModelJobs_ClientFactoryErrorFailsTask(t *testing.T) {
	h := newHarness(t, mocks.NewMockClient(), 2)
	h.factory.Err = generation.ErrUnknownProvider

	id, err := h.create(t, task.TypeAnswerGeneration, "", AnswerGenerationInput{
		Questions: []Question{{ID: "q1", Question: "Why?"}},
	})
	require.NoError(t, err)

	got := h.finished(t, id)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Contains(t, got.Note, "unknown model provider")
	require.NotNil(t, got.EndTime)
}

func TestModelJobs_ShutdownInterruptsTask(t *testing.T) {
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	client := mocks.NewMockClient(mocks.WithResponseFn(func(context.Context, string) (string, error) {
		started <- struct{}{}
		<-release
		return `["Q?"]`, nil
	}))
	h := newHarness(t, client, 1)

	id, err := h.create(t, task.TypeQuestionGeneration, "", QuestionGenerationInput{
		Chunks: []Chunk{{ID: "c1", Text: "a"}, {ID: "c2", Text: "b"}, {ID: "c3", Text: "c"}},
	})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	_ = h.dispatcher.Shutdown(ctx)
	close(release)

	got := h.finished(t, id)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Contains(t, got.Note, "interrupted")
	assert.Equal(t, 1, client.Calls(), "no item starts after shutdown")
}

func TestModelJobs_ShutdownAfterLastItemStartedCompletes(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	client := mocks.NewMockClient(mocks.WithResponseFn(func(context.Context, string) (string, error) {
		started <- struct{}{}
		<-release
		return `["What is a?"]`, nil
	}))
	h := newHarness(t, client, 1)

	id, err := h.create(t, task.TypeQuestionGeneration, "", QuestionGenerationInput{
		Chunks: []Chunk{{ID: "c1", Text: "a"}},
	})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	_ = h.dispatcher.Shutdown(ctx)
	close(release)

	got := h.finished(t, id)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.CompletedCount)
	assert.Equal(t, 1, got.TotalCount)
	assert.NotContains(t, got.Note, "interrupted")

	detail := decodeDetail[QuestionGenerationParams, Chunk, []string](t, got)
	require.Len(t, detail.Results, 1)
	assert.Equal(t, []string{"What is a?"}, detail.Results[0].Value)
	assert.Equal(t, 1, detail.Summary.SuccessCount)
}

func TestModelJobs_AbortStopsRemainingItems(t *testing.T) {
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	client := mocks.NewMockClient(mocks.WithResponseFn(func(context.Context, string) (string, error) {
		started <- struct{}{}
		<-release
		return `{"score": 3, "reason": "ok"}`, nil
	}))
	h := newHarness(t, client, 1)

	id, err := h.create(t, task.TypeDatasetEvaluation, "", DatasetEvaluationInput{
		Records: []Record{
			{ID: "r1", Question: "q1", Answer: "a1"},
			{ID: "r2", Question: "q2", Answer: "a2"},
			{ID: "r3", Question: "q3", Answer: "a3"},
		},
	})
	require.NoError(t, err)
	<-started

	_, err = h.store.Update(context.Background(), id, task.AbortUpdate("stopped by user"))
	require.NoError(t, err)
	close(release)

	got := h.finished(t, id)
	assert.Equal(t, task.StatusAborted, got.Status)
	assert.Equal(t, "stopped by user", got.Note)
	assert.Equal(t, 1, client.Calls())
}

func TestSummaryNote(t *testing.T) {
	assert.Equal(t, "completed: 3 items processed", summaryNote(batch.Summary{Total: 3, SuccessCount: 3}))
	assert.Equal(t, "completed with errors: 1 succeeded, 1 failed, 1 skipped",
		summaryNote(batch.Summary{Total: 3, SuccessCount: 1, FailureCount: 1, SkippedCount: 1}))
}

func TestPromptLanguage(t *testing.T) {
	assert.Equal(t, LanguageEnglish, promptLanguage(""))
	assert.Equal(t, LanguageEnglish, promptLanguage("fr"))
	assert.Equal(t, LanguageChinese, promptLanguage("zh"))
	assert.Equal(t, LanguageChinese, promptLanguage("zh-cn"))

	prompt, err := renderPrompt("answer_generation", "zh-CN", Question{Question: "什么是 Go？"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "问题：什么是 Go？")
	assert.NotContains(t, prompt, "参考文本")

	_, err = renderPrompt("missing", "en", nil)
	assert.Error(t, err)
}

// failingFor returns err for prompts containing marker and answer otherwise.
func failingFor(marker, answer string, err error, calls *atomic.Int32) func(context.Context, string) (string, error) {
	return func(_ context.Context, prompt string) (string, error) {
		calls.Add(1)
		if strings.Contains(prompt, marker) {
			return "", err
		}
		return answer, nil
	}
}
