package batch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Run invokes op for every item with at most limit invocations outstanding
// at any instant. Items are started in input order as soon as a slot frees
// up. The returned slices are positionally aligned with items: results[i]
// and errs[i] belong to items[i] regardless of completion order.
//
// A failing item never cancels or blocks its siblings; its error is only
// reported in its own slot. The context is checked before each item starts:
// once it is done, the remaining items settle with an error wrapping
// ErrSkipped while operations already started run to completion.
//
// Run does not recover panics raised by op. Use RunBatch for isolation.
func Run[T, R any](
	ctx context.Context,
	items []T,
	op func(ctx context.Context, item T) (R, error),
	limit int,
	opts ...Option,
) ([]R, []error) {
	o := buildOptions(opts)

	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}

	tracker := newProgressTracker(len(items), o.progress)

	if limit < 1 {
		for i := range errs {
			errs[i] = fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
			tracker.settle()
		}
		return results, errs
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			errs[i] = skipped(err)
			tracker.settle()
			continue
		}

		// Go blocks until one of the in-flight operations settles.
		g.Go(func() error {
			defer tracker.settle()

			if err := ctx.Err(); err != nil {
				errs[i] = skipped(err)
				return nil
			}

			results[i], errs[i] = op(ctx, item)
			return nil
		})
	}

	_ = g.Wait()
	return results, errs
}

func skipped(cause error) error {
	return fmt.Errorf("%w: %w", ErrSkipped, cause)
}

// progressTracker serializes progress callbacks so observers see a strictly
// increasing count.
type progressTracker struct {
	mu        sync.Mutex
	completed int
	total     int
	fn        func(completed, total int)
}

func newProgressTracker(total int, fn func(completed, total int)) *progressTracker {
	return &progressTracker{total: total, fn: fn}
}

func (p *progressTracker) settle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	if p.fn != nil {
		p.fn(p.completed, p.total)
	}
}
