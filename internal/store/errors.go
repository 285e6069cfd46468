package store

import (
	"errors"
	"fmt"
)

// Sentinel errors every task store maps its driver errors onto.
var (
	// ErrNotFound means the addressed row does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate means an insert collided with an existing key.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity means the database rejected the row, e.g. a check or
	// not-null constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTaskNotFound is the ErrNotFound returned for tasks.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)
)

// IsNotFoundError reports whether err wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err wraps ErrDuplicate.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
