package jobs

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/generation"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// Question is one question to answer, with optional reference text.
type Question struct {
	ID       string `json:"id" validate:"required"`
	Question string `json:"question" validate:"required"`
	Context  string `json:"context,omitempty"`
}

// AnswerGenerationParams are recorded with the result. There are none yet
// beyond the model itself.
type AnswerGenerationParams struct{}

// AnswerGenerationInput is the detail an answer-generation task is created
// with.
type AnswerGenerationInput struct {
	Questions []Question `json:"questions" validate:"required,min=1,dive"`
}

// AnswerGeneration answers each question, keeping the model's reasoning.
type AnswerGeneration struct {
	deps Deps
}

// ValidateInput implements task.InputValidator.
func (h *AnswerGeneration) ValidateInput(spec task.CreateSpec) error {
	return validateModelJob[AnswerGenerationInput](spec)
}

// Handle implements task.Handler.
func (h *AnswerGeneration) Handle(ctx context.Context, t *task.Task, p *task.Progress) (*task.Result, error) {
	in, err := decodeInput[AnswerGenerationInput](t.Detail)
	if err != nil {
		return nil, err
	}
	client, err := h.deps.modelClient(ctx, t.ModelInfo)
	if err != nil {
		return nil, err
	}

	return run(ctx, h.deps, p, AnswerGenerationParams{}, in.Questions,
		func(ctx context.Context, q Question) (*generation.COTResponse, error) {
			prompt, err := renderPrompt("answer_generation", t.Language, q)
			if err != nil {
				return nil, err
			}
			return client.GetResponseWithCOT(ctx, prompt)
		})
}
