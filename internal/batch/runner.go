package batch

import (
	"context"
	"errors"
	"fmt"
)

// ItemResult is a successfully processed item.
type ItemResult[T, R any] struct {
	Index int `json:"index"`
	Item  T   `json:"item"`
	Value R   `json:"value"`
}

// ItemError is an item whose processing failed after exhausting retries, or
// that was skipped because the batch was cancelled.
type ItemError[T any] struct {
	Index   int    `json:"index"`
	Item    T      `json:"item"`
	Error   string `json:"error"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Summary holds counts derived from an Outcome.
type Summary struct {
	Total        int `json:"total"`
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
	SkippedCount int `json:"skipped_count"`
}

// Outcome is the result of RunBatch. Every input item appears in exactly
// one of Results or Errors, ordered by input index.
type Outcome[T, R any] struct {
	Results []ItemResult[T, R] `json:"results"`
	Errors  []ItemError[T]     `json:"errors"`
}

// Summary counts the outcome lists. Skipped items are counted separately
// from failures.
func (o *Outcome[T, R]) Summary() Summary {
	s := Summary{
		Total:        len(o.Results) + len(o.Errors),
		SuccessCount: len(o.Results),
	}
	for _, e := range o.Errors {
		if e.Skipped {
			s.SkippedCount++
		} else {
			s.FailureCount++
		}
	}
	return s
}

// Values returns the successful values in input order.
func (o *Outcome[T, R]) Values() []R {
	values := make([]R, 0, len(o.Results))
	for _, r := range o.Results {
		values = append(values, r.Value)
	}
	return values
}

// RunBatch processes every item through the bounded executor, retrying each
// failing item per WithRetries and isolating errors and panics per item. It
// never returns an error: failures are reported in Outcome.Errors with the
// item's index so callers can tell which items failed and why.
//
// Cancelling ctx stops new items (and new retries) from starting. process
// receives a context that keeps ctx's values but not its cancellation, so an
// item that already started runs to completion.
func RunBatch[T, R any](
	ctx context.Context,
	items []T,
	process func(ctx context.Context, item T) (R, error),
	limit int,
	opts ...Option,
) *Outcome[T, R] {
	o := buildOptions(opts)

	detached := context.WithoutCancel(ctx)
	guarded := func(ctx context.Context, item T) (R, error) {
		return WithRetry(ctx, func(context.Context) (R, error) {
			return safeCall(detached, process, item)
		}, o.retries, o.delay, o.onRetry)
	}

	values, errs := Run(ctx, items, guarded, limit, opts...)

	outcome := &Outcome[T, R]{
		Results: make([]ItemResult[T, R], 0, len(items)),
		Errors:  make([]ItemError[T], 0),
	}
	for i, item := range items {
		if err := errs[i]; err != nil {
			outcome.Errors = append(outcome.Errors, ItemError[T]{
				Index:   i,
				Item:    item,
				Error:   err.Error(),
				Skipped: errors.Is(err, ErrSkipped),
			})
			continue
		}
		outcome.Results = append(outcome.Results, ItemResult[T, R]{
			Index: i,
			Item:  item,
			Value: values[i],
		})
	}

	return outcome
}

func safeCall[T, R any](
	ctx context.Context,
	process func(ctx context.Context, item T) (R, error),
	item T,
) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result = zero
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return process(ctx, item)
}
