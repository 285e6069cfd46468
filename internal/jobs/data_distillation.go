package jobs

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/task"
)

// DefaultQuestionsPerTag is used when the input does not say.
const DefaultQuestionsPerTag = 5

// Tag is a node of a topic tree, identified by its path from the root
// (for example "Physics > Mechanics > Friction").
type Tag struct {
	ID   string `json:"id" validate:"required"`
	Path string `json:"path" validate:"required"`
}

// DataDistillationParams control distillation.
type DataDistillationParams struct {
	QuestionsPerTag int `json:"questions_per_tag" validate:"min=1,max=50"`
}

// DataDistillationInput is the detail a data-distillation task is created
// with.
type DataDistillationInput struct {
	DataDistillationParams
	Tags []Tag `json:"tags" validate:"required,min=1,dive"`
}

func (in *DataDistillationInput) applyDefaults() {
	if in.QuestionsPerTag == 0 {
		in.QuestionsPerTag = DefaultQuestionsPerTag
	}
}

// DataDistillation asks the model to write questions about each topic tag
// from its own knowledge, without source documents.
type DataDistillation struct {
	deps Deps
}

// ValidateInput implements task.InputValidator.
func (h *DataDistillation) ValidateInput(spec task.CreateSpec) error {
	return validateModelJob[DataDistillationInput](spec)
}

// Handle implements task.Handler.
func (h *DataDistillation) Handle(ctx context.Context, t *task.Task, p *task.Progress) (*task.Result, error) {
	in, err := decodeInput[DataDistillationInput](t.Detail)
	if err != nil {
		return nil, err
	}
	client, err := h.deps.modelClient(ctx, t.ModelInfo)
	if err != nil {
		return nil, err
	}

	return run(ctx, h.deps, p, in.DataDistillationParams, in.Tags,
		func(ctx context.Context, tag Tag) ([]string, error) {
			prompt, err := renderPrompt("data_distillation", t.Language, map[string]any{
				"Path":  tag.Path,
				"Count": in.QuestionsPerTag,
			})
			if err != nil {
				return nil, err
			}
			return askForQuestions(ctx, client, prompt)
		})
}
