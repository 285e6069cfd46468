package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrazzld/dataset-forge/internal/generation"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// DefaultQuestionsPerChunk is used when the input does not say.
const DefaultQuestionsPerChunk = 3

// QuestionGenerationParams control question generation.
type QuestionGenerationParams struct {
	QuestionsPerChunk int `json:"questions_per_chunk" validate:"min=1,max=50"`
}

// QuestionGenerationInput is the detail a question-generation task is
// created with.
type QuestionGenerationInput struct {
	QuestionGenerationParams
	Chunks []Chunk `json:"chunks" validate:"required,min=1,dive"`
}

func (in *QuestionGenerationInput) applyDefaults() {
	if in.QuestionsPerChunk == 0 {
		in.QuestionsPerChunk = DefaultQuestionsPerChunk
	}
}

// QuestionGeneration asks the model for questions about each chunk.
type QuestionGeneration struct {
	deps Deps
}

// ValidateInput implements task.InputValidator.
func (h *QuestionGeneration) ValidateInput(spec task.CreateSpec) error {
	return validateModelJob[QuestionGenerationInput](spec)
}

// Handle implements task.Handler.
func (h *QuestionGeneration) Handle(ctx context.Context, t *task.Task, p *task.Progress) (*task.Result, error) {
	in, err := decodeInput[QuestionGenerationInput](t.Detail)
	if err != nil {
		return nil, err
	}
	client, err := h.deps.modelClient(ctx, t.ModelInfo)
	if err != nil {
		return nil, err
	}

	return run(ctx, h.deps, p, in.QuestionGenerationParams, in.Chunks,
		func(ctx context.Context, chunk Chunk) ([]string, error) {
			prompt, err := renderPrompt("question_generation", t.Language, map[string]any{
				"Text":  chunk.Text,
				"Count": in.QuestionsPerChunk,
			})
			if err != nil {
				return nil, err
			}
			return askForQuestions(ctx, client, prompt)
		})
}

// askForQuestions sends prompt and expects a JSON array of questions back.
func askForQuestions(ctx context.Context, client generation.Client, prompt string) ([]string, error) {
	answer, err := client.GetResponse(ctx, prompt)
	if err != nil {
		return nil, err
	}
	raw, err := generation.DecodeJSON[[]string](answer)
	if err != nil {
		return nil, err
	}

	questions := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions in answer", generation.ErrInvalidResponse)
	}
	return questions, nil
}
