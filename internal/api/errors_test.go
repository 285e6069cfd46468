package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/dataset-forge/internal/api/shared"
	"github.com/phrazzld/dataset-forge/internal/store"
	"github.com/phrazzld/dataset-forge/internal/task"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"task not found", fmt.Errorf("failed to get task: %w", task.ErrNotFound), http.StatusNotFound},
		{"store not found", store.ErrNotFound, http.StatusNotFound},
		{"terminal", fmt.Errorf("failed to update task: %w", task.ErrTaskTerminal), http.StatusConflict},
		{"invalid input", task.ErrInvalidInput, http.StatusBadRequest},
		{"no handler", task.ErrNoHandler, http.StatusBadRequest},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"empty body", shared.ErrEmptyBody, http.StatusBadRequest},
		{"shutting down", task.ErrShuttingDown, http.StatusServiceUnavailable},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "An unexpected error occurred",
		GetSafeErrorMessage(errors.New("dial tcp postgres://user:pw@db:5432 refused")))
	assert.Equal(t, "Task not found", GetSafeErrorMessage(task.ErrNotFound))
	assert.Equal(t, "Task has already finished", GetSafeErrorMessage(task.ErrTaskTerminal))
	assert.Equal(t, "Service is shutting down", GetSafeErrorMessage(task.ErrShuttingDown))

	err := fmt.Errorf("%w: documents must not be empty", task.ErrInvalidInput)
	assert.Equal(t, "Invalid task input: documents must not be empty", GetSafeErrorMessage(err))

	err = fmt.Errorf("%w: model_info: api_key=sk-secretsecret1234 rejected", task.ErrInvalidInput)
	assert.NotContains(t, GetSafeErrorMessage(err), "secretsecret")

	assert.Equal(t, "Invalid task input", GetSafeErrorMessage(task.ErrInvalidInput))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	type input struct {
		Documents []string `validate:"required"`
		Chunk     int      `validate:"max=10"`
	}
	v := validator.New()

	err := v.Struct(input{})
	require.Error(t, err)
	assert.Equal(t, "Invalid Documents: required field", SanitizeValidationError(err))

	err = v.Struct(input{Documents: []string{"a"}, Chunk: 11})
	require.Error(t, err)
	assert.Equal(t, "Invalid Chunk: too large", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("something else")))

	wrapped := fmt.Errorf("%w: %w", task.ErrInvalidInput, v.Struct(input{}))
	assert.Equal(t, "Invalid Documents: required field", GetSafeErrorMessage(wrapped))
}

func TestMaskModelInfo(t *testing.T) {
	t.Parallel()

	masked := maskModelInfo(json.RawMessage(`{"provider":"gemini","api_key":"AIzaSyExample9876"}`))
	var fields map[string]string
	require.NoError(t, json.Unmarshal(masked, &fields))
	assert.Equal(t, "****9876", fields["api_key"])
	assert.Equal(t, "gemini", fields["provider"])

	noKey := json.RawMessage(`{"provider":"ollama"}`)
	assert.Equal(t, noKey, maskModelInfo(noKey))
	assert.Nil(t, maskModelInfo(nil))
	assert.Equal(t, json.RawMessage(`"not an object"`), maskModelInfo(json.RawMessage(`"not an object"`)))
}
