package task

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a task.
type Status int

// Possible task status values. Processing is the only non-terminal state.
const (
	StatusProcessing Status = 0
	StatusCompleted  Status = 1
	StatusFailed     Status = 2
	StatusAborted    Status = 3
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return s >= StatusProcessing && s <= StatusAborted
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAborted
}

// CanTransition reports whether a task in status from may move to status to.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return !from.IsTerminal()
}

// ParseStatus accepts either the numeric code or the status name.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		status := Status(n)
		if !status.Valid() {
			return 0, fmt.Errorf("%w: unknown status %d", ErrInvalidInput, n)
		}
		return status, nil
	}
	for _, status := range []Status{StatusProcessing, StatusCompleted, StatusFailed, StatusAborted} {
		if status.String() == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// Type selects the job handler that interprets a task.
type Type string

// Task type constants
const (
	TypeTextProcessing     Type = "text-processing"
	TypeQuestionGeneration Type = "question-generation"
	TypeAnswerGeneration   Type = "answer-generation"
	TypeDataDistillation   Type = "data-distillation"
	TypeDatasetEvaluation  Type = "dataset-evaluation"
)

// Task is the persisted, pollable record of one batch job.
//
// ModelInfo and Detail are stored as raw JSON. The handler for TaskType
// decodes ModelInfo and writes its own typed Detail; nothing in this package
// interprets either.
type Task struct {
	ID             uuid.UUID       `json:"id"`
	ProjectID      string          `json:"project_id"`
	TaskType       Type            `json:"task_type"`
	Status         Status          `json:"status"`
	ModelInfo      json.RawMessage `json:"model_info,omitempty"`
	Language       string          `json:"language"`
	TotalCount     int             `json:"total_count"`
	CompletedCount int             `json:"completed_count"`
	Detail         json.RawMessage `json:"detail,omitempty"`
	Note           string          `json:"note"`
	CreateAt       time.Time       `json:"create_at"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.ModelInfo = cloneRaw(t.ModelInfo)
	c.Detail = cloneRaw(t.Detail)
	if t.EndTime != nil {
		end := *t.EndTime
		c.EndTime = &end
	}
	return &c
}

// Validate checks the invariants of a stored task.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: task ID cannot be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(t.ProjectID) == "" {
		return fmt.Errorf("%w: project ID cannot be empty", ErrInvalidInput)
	}
	if t.TaskType == "" {
		return fmt.Errorf("%w: task type cannot be empty", ErrInvalidInput)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: invalid status %d", ErrInvalidInput, t.Status)
	}
	if t.TotalCount < 0 || t.CompletedCount < 0 {
		return fmt.Errorf("%w: counters cannot be negative", ErrInvalidInput)
	}
	if t.TotalCount > 0 && t.CompletedCount > t.TotalCount {
		return fmt.Errorf("%w: completed count %d exceeds total count %d",
			ErrInvalidInput, t.CompletedCount, t.TotalCount)
	}
	if t.Status.IsTerminal() != (t.EndTime != nil) {
		return fmt.Errorf("%w: end time must be set exactly when the task is terminal", ErrInvalidInput)
	}
	if err := validRaw("model info", t.ModelInfo); err != nil {
		return err
	}
	return validRaw("detail", t.Detail)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	c := make(json.RawMessage, len(raw))
	copy(c, raw)
	return c
}

func validRaw(field string, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	if !json.Valid(raw) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrInvalidInput, field)
	}
	return nil
}
