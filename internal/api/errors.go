package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/dataset-forge/internal/api/shared"
	"github.com/phrazzld/dataset-forge/internal/redact"
	"github.com/phrazzld/dataset-forge/internal/store"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, task.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, task.ErrTaskTerminal):
		return http.StatusConflict

	case errors.Is(err, task.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrShuttingDown):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, task.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return "Task not found"

	case errors.Is(err, task.ErrTaskTerminal):
		return "Task has already finished"

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case errors.Is(err, task.ErrInvalidInput):
		return invalidInputMessage(err)

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid task data"

	case errors.Is(err, task.ErrShuttingDown):
		return "Service is shutting down"

	default:
		return "An unexpected error occurred"
	}
}

// invalidInputMessage keeps the explanation that follows the invalid-input
// sentinel, which is written for clients, and drops any wrapping context.
func invalidInputMessage(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "Field validation") {
		return SanitizeValidationError(err)
	}

	marker := task.ErrInvalidInput.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		if detail := strings.TrimSpace(msg[i+len(marker):]); detail != "" {
			return "Invalid task input: " + redact.String(detail)
		}
	}
	return "Invalid task input"
}

// SanitizeValidationError turns a validator error into a short message
// naming the first failing field.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example: "Key: 'TextProcessingInput.Documents' Error:Field validation for 'Documents' failed on the 'required' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "ltfield":
		return "must be less than its limit"
	case "url":
		return "invalid URL"
	default:
		return "validation failed"
	}
}
