package batch

import (
	"context"
	"time"
)

// WithRetry executes op and re-invokes it on failure until it succeeds or
// retries+1 attempts have been made. Before each retry, onRetry (if not nil)
// receives the error and the 1-based number of the attempt that failed, then
// WithRetry waits delay; the delay is constant across attempts and skipped
// when zero.
//
// On permanent failure the error from the last attempt is returned; earlier
// errors are discarded. If ctx is done before a retry, no further attempts
// are made and the last observed error is returned.
func WithRetry[R any](
	ctx context.Context,
	op func(ctx context.Context) (R, error),
	retries int,
	delay time.Duration,
	onRetry func(err error, attempt int),
) (R, error) {
	if retries < 0 {
		retries = 0
	}
	maxAttempts := retries + 1

	var zero R
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}

		if onRetry != nil {
			onRetry(err, attempt)
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, lastErr
			}
		}
	}

	return zero, lastErr
}
