package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/dataset-forge/internal/generation"
	"github.com/phrazzld/dataset-forge/internal/mocks"
	"github.com/phrazzld/dataset-forge/internal/task"
)

func TestTextProcessing(t *testing.T) {
	h := newHarness(t, mocks.NewMockClient(), 2)

	plain := strings.Repeat("Go makes concurrency approachable with goroutines and channels. ", 20)
	markdown := "# Guide\n\nIntro paragraph.\n\n## Install\n\nRun the installer."

	id, err := h.create(t, task.TypeTextProcessing, "", TextProcessingInput{
		TextProcessingParams: TextProcessingParams{ChunkSize: 200, ChunkOverlap: 20},
		Documents: []Document{
			{Name: "intro.txt", Text: plain},
			{Name: "guide.md", Text: markdown},
		},
	})
	require.NoError(t, err)

	got := h.finished(t, id)
	require.Equal(t, task.StatusCompleted, got.Status, got.Note)
	assert.Equal(t, 2, got.TotalCount)
	assert.Equal(t, 2, got.CompletedCount)
	assert.Contains(t, got.Note, "chunks")

	detail := decodeDetail[TextProcessingParams, Document, []Chunk](t, got)
	assert.Equal(t, TextProcessingParams{ChunkSize: 200, ChunkOverlap: 20}, detail.Input)
	assert.Equal(t, 2, detail.Summary.SuccessCount)
	require.Len(t, detail.Results, 2)
	assert.Empty(t, detail.Errors)

	plainChunks := detail.Results[0].Value
	assert.Greater(t, len(plainChunks), 1)
	for i, c := range plainChunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 200)
		assert.Equal(t, fmt.Sprintf("intro.txt#%d", i+1), c.ID)
	}

	var joined strings.Builder
	for _, c := range detail.Results[1].Value {
		joined.WriteString(c.Text)
	}
	assert.Contains(t, joined.String(), "Run the installer.")

	assert.Zero(t, h.factory.Requested(), "text processing needs no model")
}

func TestTextProcessing_Defaults(t *testing.T) {
	in, err := decodeInput[TextProcessingInput]([]byte(`{"documents":[{"name":"a.txt","text":"x"}]}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, in.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, in.ChunkOverlap)
}

func TestTextProcessing_InvalidInput(t *testing.T) {
	h := newHarness(t, mocks.NewMockClient(), 2)

	tests := []struct {
		name   string
		detail any
	}{
		{"no documents", TextProcessingInput{}},
		{"overlap not below size", TextProcessingInput{
			TextProcessingParams: TextProcessingParams{ChunkSize: 200, ChunkOverlap: 200},
			Documents:            []Document{{Name: "a.txt", Text: "x"}},
		}},
		{"chunk size too small", TextProcessingInput{
			TextProcessingParams: TextProcessingParams{ChunkSize: 10},
			Documents:            []Document{{Name: "a.txt", Text: "x"}},
		}},
		{"unnamed document", TextProcessingInput{Documents: []Document{{Text: "x"}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.create(t, task.TypeTextProcessing, "", tc.detail)
			assert.ErrorIs(t, err, task.ErrInvalidInput)
		})
	}
}

func TestQuestionGeneration_PartialFailure(t *testing.T) {
	var calls atomic.Int32
	client := mocks.NewMockClient(mocks.WithResponseFn(
		failingFor("BROKEN", "```json\n[\"What is a goroutine?\", \" \", \"What is a channel?\"]\n```",
			generation.ErrTransientFailure, &calls)))
	h := newHarness(t, client, 2)

	id, err := h.create(t, task.TypeQuestionGeneration, "en", QuestionGenerationInput{
		Chunks: []Chunk{
			{ID: "c1", Text: "Goroutines are lightweight threads."},
			{ID: "c2", Text: "BROKEN chunk"},
			{ID: "c3", Text: "Channels connect goroutines."},
		},
	})
	require.NoError(t, err)

	got := h.finished(t, id)
	require.Equal(t, task.StatusCompleted, got.Status, got.Note)
	assert.Equal(t, 3, got.TotalCount)
	assert.Equal(t, 3, got.CompletedCount)
	assert.Contains(t, got.Note, "1 failed")

	detail := decodeDetail[QuestionGenerationParams, Chunk, []string](t, got)
	assert.Equal(t, DefaultQuestionsPerChunk, detail.Input.QuestionsPerChunk)
	assert.Equal(t, 2, detail.Summary.SuccessCount)
	assert.Equal(t, 1, detail.Summary.FailureCount)
	require.Len(t, detail.Results, 2)
	assert.Equal(t, []string{"What is a goroutine?", "What is a channel?"}, detail.Results[0].Value)
	require.Len(t, detail.Errors, 1)
	assert.Equal(t, 1, detail.Errors[0].Index)
	assert.Equal(t, "c2", detail.Errors[0].Item.ID)
	assert.Contains(t, detail.Errors[0].Error, "transient")

	// Two successes plus two attempts for the failing chunk.
	assert.Equal(t, int32(4), calls.Load())
	for _, prompt := range client.Prompts() {
		assert.Contains(t, prompt, "write 3 distinct questions")
	}
	require.Len(t, h.factory.Requested(), 1)
	assert.Equal(t, "gpt-4o-mini", h.factory.Requested()[0].ModelName)
}

func TestQuestionGeneration_UnparseableAnswer(t *testing.T) {
	client := mocks.NewMockClient(mocks.WithAnswer("Sorry, I can't do that.", ""))
	h := newHarness(t, client, 1)

	id, err := h.create(t, task.TypeQuestionGeneration, "", QuestionGenerationInput{
		Chunks: []Chunk{{ID: "c1", Text: "text"}},
	})
	require.NoError(t, err)

	got := h.finished(t, id)
	assert.Equal(t, task.StatusCompleted, got.Status, "item failures do not fail the task")
	detail := decodeDetail[QuestionGenerationParams, Chunk, []string](t, got)
	require.Len(t, detail.Errors, 1)
	assert.Contains(t, detail.Errors[0].Error, generation.ErrInvalidResponse.Error())
	assert.NotNil(t, detail.Results)
}

func TestAnswerGeneration(t *testing.T) {
	client := mocks.NewMockClient(mocks.WithCOTFn(func(_ context.Context, prompt string) (*generation.COTResponse, error) {
		return &generation.COTResponse{Answer: "42", COT: "Deep Thought computed it."}, nil
	}))
	h := newHarness(t, client, 2)

	id, err := h.create(t, task.TypeAnswerGeneration, "zh-CN", AnswerGenerationInput{
		Questions: []Question{
			{ID: "q1", Question: "生命的意义是什么？", Context: "银河系漫游指南"},
			{ID: "q2", Question: "宇宙的答案？"},
		},
	})
	require.NoError(t, err)

	got := h.finished(t, id)
	require.Equal(t, task.StatusCompleted, got.Status, got.Note)
	assert.Equal(t, "zh-CN", got.Language)

	detail := decodeDetail[AnswerGenerationParams, Question, generation.COTResponse](t, got)
	require.Len(t, detail.Results, 2)
	assert.Equal(t, "42", detail.Results[0].Value.Answer)
	assert.Equal(t, "Deep Thought computed it.", detail.Results[0].Value.COT)

	assert.Equal(t, 2, client.COTCalls())
	prompts := client.Prompts()
	require.Len(t, prompts, 2)
	joined := strings.Join(prompts, "\n")
	assert.Contains(t, joined, "参考文本")
	assert.Contains(t, joined, "问题：宇宙的答案？")
}

func TestDataDistillation(t *testing.T) {
	client := mocks.NewMockClient(mocks.WithAnswer(`["How does friction depend on normal force?","What is static friction?"]`, ""))
	h := newHarness(t, client, 2)

	raw := map[string]any{
		"questions_per_tag": 2,
		"tags": []map[string]string{
			{"id": "t1", "path": "Physics > Mechanics > Friction"},
			{"id": "t2", "path": "Physics > Optics"},
		},
	}
	id, err := h.create(t, task.TypeDataDistillation, "", raw)
	require.NoError(t, err)

	got := h.finished(t, id)
	require.Equal(t, task.StatusCompleted, got.Status, got.Note)

	detail := decodeDetail[DataDistillationParams, Tag, []string](t, got)
	assert.Equal(t, 2, detail.Input.QuestionsPerTag)
	require.Len(t, detail.Results, 2)
	assert.Len(t, detail.Results[1].Value, 2)

	joined := strings.Join(client.Prompts(), "\n")
	assert.Contains(t, joined, "Physics > Mechanics > Friction")
	assert.Contains(t, joined, "Write 2 diverse")
}

func TestDatasetEvaluation(t *testing.T) {
	client := mocks.NewMockClient(mocks.WithResponseFn(func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Answer: wrong") {
			return `{"score": 9, "reason": "off the scale"}`, nil
		}
		return "Here is my rating: {\"score\": 4.5, \"reason\": \" mostly complete \"}", nil
	}))
	h := newHarness(t, client, 2)

	id, err := h.create(t, task.TypeDatasetEvaluation, "en", DatasetEvaluationInput{
		Records: []Record{
			{ID: "r1", Question: "What is Go?", Answer: "A programming language."},
			{ID: "r2", Question: "What is 2+2?", Answer: "wrong"},
		},
	})
	require.NoError(t, err)

	got := h.finished(t, id)
	require.Equal(t, task.StatusCompleted, got.Status, got.Note)

	detail := decodeDetail[DatasetEvaluationParams, Record, Evaluation](t, got)
	assert.Equal(t, MaxScore, detail.Input.MaxScore)
	require.Len(t, detail.Results, 1)
	assert.Equal(t, Evaluation{Score: 4.5, Reason: "mostly complete"}, detail.Results[0].Value)
	require.Len(t, detail.Errors, 1)
	assert.Equal(t, "r2", detail.Errors[0].Item.ID)
	assert.Contains(t, detail.Errors[0].Error, "outside 0-5")
}

func TestItemErrorsAreRedacted(t *testing.T) {
	var calls atomic.Int32
	client := mocks.NewMockClient(mocks.WithResponseFn(
		failingFor("", "", errors.New("401 Incorrect API key provided: sk-proj-0123456789abcdefABCDEF"), &calls)))
	h := newHarness(t, client, 1)

	id, err := h.create(t, task.TypeQuestionGeneration, "", QuestionGenerationInput{
		Chunks: []Chunk{{ID: "c1", Text: "text"}},
	})
	require.NoError(t, err)

	got := h.finished(t, id)
	assert.NotContains(t, string(got.Detail), "sk-proj-0123456789abcdefABCDEF")

	retries := h.logs.Find("retrying item")
	require.NotEmpty(t, retries)
	assert.Equal(t, id.String(), retries[0].String("task_id"))
	assert.False(t, h.logs.Contains("sk-proj-0123456789abcdefABCDEF"))
}
