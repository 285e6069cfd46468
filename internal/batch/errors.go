package batch

import "errors"

// Common errors returned in per-item error slots
var (
	// ErrInvalidLimit is reported for every item when Run is called with a
	// concurrency limit below 1.
	ErrInvalidLimit = errors.New("concurrency limit must be at least 1")

	// ErrSkipped marks an item that was never started because the batch
	// context was cancelled before a slot became free.
	ErrSkipped = errors.New("item skipped")

	// ErrPanic wraps a panic recovered from a per-item operation.
	ErrPanic = errors.New("item operation panicked")
)
