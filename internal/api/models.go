package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/dataset-forge/internal/redact"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// CreateTaskRequest defines the payload for creating a task in a project.
type CreateTaskRequest struct {
	TaskType   string          `json:"task_type"             validate:"required,max=64"`
	ModelInfo  json.RawMessage `json:"model_info,omitempty"`
	Language   string          `json:"language,omitempty"    validate:"omitempty,max=16"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	TotalCount int             `json:"total_count,omitempty" validate:"gte=0"`
	Note       string          `json:"note,omitempty"        validate:"max=2000"`
}

// CreateTaskResponse is returned once the task record exists.
type CreateTaskResponse struct {
	TaskID uuid.UUID `json:"task_id"`
}

// StatusValue accepts a task status as its number or its name.
type StatusValue task.Status

// UnmarshalJSON implements json.Unmarshaler.
func (s *StatusValue) UnmarshalJSON(b []byte) error {
	status, err := task.ParseStatus(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*s = StatusValue(status)
	return nil
}

// UpdateTaskRequest defines a partial update. Omitted fields are unchanged.
type UpdateTaskRequest struct {
	Status         *StatusValue    `json:"status,omitempty"`
	CompletedCount *int            `json:"completed_count,omitempty" validate:"omitempty,gte=0"`
	TotalCount     *int            `json:"total_count,omitempty"     validate:"omitempty,gte=0"`
	Detail         json.RawMessage `json:"detail,omitempty"`
	Note           *string         `json:"note,omitempty"            validate:"omitempty,max=2000"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
}

// ToUpdate converts the request into a task update.
func (r UpdateTaskRequest) ToUpdate() task.Update {
	u := task.Update{
		CompletedCount: r.CompletedCount,
		TotalCount:     r.TotalCount,
		Detail:         r.Detail,
		Note:           r.Note,
		EndTime:        r.EndTime,
	}
	if r.Status != nil {
		status := task.Status(*r.Status)
		u.Status = &status
	}
	return u
}

// AbortTaskRequest is the optional body of an abort request.
type AbortTaskRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// TaskResponse is the API view of a task. The model's API key is masked.
type TaskResponse struct {
	ID             uuid.UUID       `json:"id"`
	ProjectID      string          `json:"project_id"`
	TaskType       string          `json:"task_type"`
	Status         int             `json:"status"`
	StatusName     string          `json:"status_name"`
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

// ListTasksResponse is one page of a project's tasks.
type ListTasksResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

func newTaskResponse(t *task.Task) TaskResponse {
	return TaskResponse{
		ID:             t.ID,
		ProjectID:      t.ProjectID,
		TaskType:       string(t.TaskType),
		Status:         int(t.Status),
		StatusName:     t.Status.String(),
		ModelInfo:      maskModelInfo(t.ModelInfo),
		Language:       t.Language,
		TotalCount:     t.TotalCount,
		CompletedCount: t.CompletedCount,
		Detail:         t.Detail,
		Note:           t.Note,
		CreateAt:       t.CreateAt,
		EndTime:        t.EndTime,
		UpdatedAt:      t.UpdatedAt,
	}
}

// maskModelInfo replaces the api_key of a model info document with a
// masked form. Documents that are not JSON objects are returned unchanged.
func maskModelInfo(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return raw
	}
	key, ok := fields["api_key"].(string)
	if !ok {
		return raw
	}
	fields["api_key"] = redact.Key(key)
	masked, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return masked
}
