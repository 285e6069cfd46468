package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrazzld/dataset-forge/internal/generation"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// MaxScore is the top of the evaluation scale.
const MaxScore = 5

// Record is a question/answer pair from a dataset.
type Record struct {
	ID       string `json:"id" validate:"required"`
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// Evaluation is the model's verdict on one record.
type Evaluation struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// DatasetEvaluationParams are recorded with the result.
type DatasetEvaluationParams struct {
	MaxScore int `json:"max_score"`
}

// DatasetEvaluationInput is the detail a dataset-evaluation task is created
// with.
type DatasetEvaluationInput struct {
	Records []Record `json:"records" validate:"required,min=1,dive"`
}

// DatasetEvaluation scores each record with the model acting as judge.
type DatasetEvaluation struct {
	deps Deps
}

// ValidateInput implements task.InputValidator.
func (h *DatasetEvaluation) ValidateInput(spec task.CreateSpec) error {
	return validateModelJob[DatasetEvaluationInput](spec)
}

// Handle implements task.Handler.
func (h *DatasetEvaluation) Handle(ctx context.Context, t *task.Task, p *task.Progress) (*task.Result, error) {
	in, err := decodeInput[DatasetEvaluationInput](t.Detail)
	if err != nil {
		return nil, err
	}
	client, err := h.deps.modelClient(ctx, t.ModelInfo)
	if err != nil {
		return nil, err
	}

	return run(ctx, h.deps, p, DatasetEvaluationParams{MaxScore: MaxScore}, in.Records,
		func(ctx context.Context, r Record) (Evaluation, error) {
			prompt, err := renderPrompt("dataset_evaluation", t.Language, r)
			if err != nil {
				return Evaluation{}, err
			}
			answer, err := client.GetResponse(ctx, prompt)
			if err != nil {
				return Evaluation{}, err
			}

			eval, err := generation.DecodeJSON[Evaluation](answer)
			if err != nil {
				return Evaluation{}, err
			}
			if eval.Score < 0 || eval.Score > MaxScore {
				return Evaluation{}, fmt.Errorf("%w: score %v outside 0-%d", generation.ErrInvalidResponse, eval.Score, MaxScore)
			}
			eval.Reason = strings.TrimSpace(eval.Reason)
			return eval, nil
		})
}
