package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/dataset-forge/internal/batch"
	"github.com/phrazzld/dataset-forge/internal/generation"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/redact"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// ErrInterrupted is returned when the process shuts down while a job still
// has items to run.
var ErrInterrupted = errors.New("interrupted")

// Default job settings.
const (
	DefaultConcurrency = 5
	DefaultRetries     = 2
	DefaultRetryDelay  = time.Second
)

// Deps are the collaborators and execution policy shared by all jobs.
type Deps struct {
	// Models builds the client for a task's model info.
	Models generation.Factory
	// Concurrency caps in-flight items per task.
	Concurrency int
	// Retries and RetryDelay configure per-item retries.
	Retries    int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Concurrency < 1 {
		d.Concurrency = DefaultConcurrency
	}
	if d.Retries < 0 {
		d.Retries = DefaultRetries
	}
	if d.RetryDelay < 0 {
		d.RetryDelay = DefaultRetryDelay
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// Register adds every job handler to reg.
func Register(reg *task.Registry, deps Deps) error {
	if deps.Models == nil {
		return errors.New("jobs: a model client factory is required")
	}
	deps = deps.withDefaults()

	handlers := []struct {
		taskType task.Type
		handler  task.Handler
	}{
		{task.TypeTextProcessing, &TextProcessing{deps: deps}},
		{task.TypeQuestionGeneration, &QuestionGeneration{deps: deps}},
		{task.TypeAnswerGeneration, &AnswerGeneration{deps: deps}},
		{task.TypeDataDistillation, &DataDistillation{deps: deps}},
		{task.TypeDatasetEvaluation, &DatasetEvaluation{deps: deps}},
	}
	for _, h := range handlers {
		if err := reg.Register(h.taskType, h.handler); err != nil {
			return fmt.Errorf("failed to register %s: %w", h.taskType, err)
		}
	}
	return nil
}

// Detail is the document a job leaves in Task.Detail. Input holds the job
// parameters; the items themselves appear in Results and Errors.
type Detail[P, T, R any] struct {
	Input   P                        `json:"input"`
	Summary batch.Summary            `json:"summary"`
	Results []batch.ItemResult[T, R] `json:"results"`
	Errors  []batch.ItemError[T]     `json:"errors"`
}

var validate = validator.New()

// decodeInput parses and validates a job input. Inputs with an
// applyDefaults method get it called before validation.
func decodeInput[In any](raw json.RawMessage) (In, error) {
	var in In
	if len(raw) == 0 {
		return in, fmt.Errorf("%w: task detail must carry the job input", task.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("%w: malformed job input: %v", task.ErrInvalidInput, err)
	}
	if d, ok := any(&in).(interface{ applyDefaults() }); ok {
		d.applyDefaults()
	}
	if err := validate.Struct(in); err != nil {
		return in, fmt.Errorf("%w: %v", task.ErrInvalidInput, err)
	}
	return in, nil
}

// modelClient builds the client named by the task's model info.
func (d Deps) modelClient(ctx context.Context, modelInfo json.RawMessage) (generation.Client, error) {
	info, err := generation.ParseModelInfo(modelInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", task.ErrInvalidInput, err)
	}
	client, err := d.Models.NewClient(ctx, info)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// validateModelJob checks what a model-backed job needs before its task is
// created.
func validateModelJob[In any](spec task.CreateSpec) error {
	if _, err := generation.ParseModelInfo(spec.ModelInfo); err != nil {
		return fmt.Errorf("%w: %w", task.ErrInvalidInput, err)
	}
	_, err := decodeInput[In](spec.Detail)
	return err
}

// run processes items and builds the task result. A shutdown that left
// items unstarted fails the task unless the task was aborted or deleted, in
// which case the result is discarded by the dispatcher anyway. A shutdown
// that arrives after every item has started keeps the finished results.
func run[P, T, R any](
	ctx context.Context,
	deps Deps,
	p *task.Progress,
	params P,
	items []T,
	process func(ctx context.Context, item T) (R, error),
) (*task.Result, error) {
	log := logger.FromContextOrDefault(ctx, deps.Logger)

	if err := p.SetTotal(ctx, len(items)); err != nil {
		return nil, fmt.Errorf("failed to record item count: %w", err)
	}

	started := time.Now()
	outcome := batch.RunBatch(ctx, items, process, deps.Concurrency,
		batch.WithRetries(deps.Retries, deps.RetryDelay),
		batch.WithOnRetry(func(err error, attempt int) {
			log.Warn("retrying item", "attempt", attempt, "error", redact.Error(err))
		}),
		batch.WithProgress(p.Hook(ctx)),
	)
	summary := outcome.Summary()

	log.Info("batch settled",
		"total", summary.Total,
		"succeeded", summary.SuccessCount,
		"failed", summary.FailureCount,
		"skipped", summary.SkippedCount,
		"duration_ms", time.Since(started).Milliseconds())

	if summary.SkippedCount > 0 && !p.Stopped() {
		return nil, fmt.Errorf("%w: service stopped after %d of %d items",
			ErrInterrupted, summary.SuccessCount+summary.FailureCount, summary.Total)
	}

	results := outcome.Results
	if results == nil {
		results = []batch.ItemResult[T, R]{}
	}
	itemErrors := make([]batch.ItemError[T], 0, len(outcome.Errors))
	for _, e := range outcome.Errors {
		e.Error = redact.String(e.Error)
		itemErrors = append(itemErrors, e)
	}

	return &task.Result{
		Total: len(items),
		Detail: Detail[P, T, R]{
			Input:   params,
			Summary: summary,
			Results: results,
			Errors:  itemErrors,
		},
		Note: summaryNote(summary),
	}, nil
}

func summaryNote(s batch.Summary) string {
	if s.FailureCount == 0 && s.SkippedCount == 0 {
		return fmt.Sprintf("completed: %d items processed", s.Total)
	}
	return fmt.Sprintf("completed with errors: %d succeeded, %d failed, %d skipped",
		s.SuccessCount, s.FailureCount, s.SkippedCount)
}
