package task

import (
	"errors"
	"fmt"

	"github.com/phrazzld/dataset-forge/internal/store"
)

// Common errors returned by the task package
var (
	// ErrInvalidInput is returned when a create or update request fails
	// validation. No task is created or modified.
	ErrInvalidInput = errors.New("invalid task input")

	// ErrTaskTerminal is returned when a write targets a task that has
	// already reached Completed, Failed or Aborted.
	ErrTaskTerminal = errors.New("task is already in a terminal state")

	// ErrNotFound is returned when the addressed task does not exist.
	ErrNotFound = store.ErrTaskNotFound

	// ErrNoHandler is returned when no handler is registered for a task type.
	ErrNoHandler = fmt.Errorf("%w: no handler registered for task type", ErrInvalidInput)

	// ErrHandlerPanic wraps a panic recovered from a job handler.
	ErrHandlerPanic = errors.New("task handler panicked")
)

// isBenignWriteError reports whether a failed write means the task was
// aborted or deleted underneath its handler rather than a storage failure.
func isBenignWriteError(err error) bool {
	return errors.Is(err, ErrTaskTerminal) || errors.Is(err, store.ErrNotFound)
}
