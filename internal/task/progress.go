package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Progress mirrors a running handler's counters into the store.
//
// When a write is rejected because the task became terminal (aborted) or
// was deleted, Progress stops writing and cancels the handler's context so
// no new items are scheduled. Items already in flight finish normally.
type Progress struct {
	store  Store
	taskID uuid.UUID
	cancel context.CancelFunc
	logger *slog.Logger

	mu        sync.Mutex
	total     int
	completed int
	// reported is set once the handler has recorded a total itself.
	reported bool
	stopped  bool
}

func newProgress(store Store, t *Task, cancel context.CancelFunc, logger *slog.Logger) *Progress {
	return &Progress{
		store:     store,
		taskID:    t.ID,
		cancel:    cancel,
		logger:    logger,
		total:     t.TotalCount,
		completed: t.CompletedCount,
	}
}

// SetTotal records the number of items once the handler knows it.
func (p *Progress) SetTotal(ctx context.Context, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.reported = true
	return p.write(ctx, Update{TotalCount: &total})
}

// Report records that completed of total items have settled. Reports that
// would move the counter backwards are ignored.
func (p *Progress) Report(ctx context.Context, completed, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if completed < p.completed {
		return nil
	}
	p.completed = completed
	p.total = total
	p.reported = true
	return p.write(ctx, ProgressUpdate(completed, total))
}

// Hook adapts Report to the executor's progress callback.
func (p *Progress) Hook(ctx context.Context) func(completed, total int) {
	return func(completed, total int) {
		_ = p.Report(ctx, completed, total)
	}
}

// SetNote replaces the task's note.
func (p *Progress) SetNote(ctx context.Context, note string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(ctx, Update{Note: &note})
}

// SetDetail stores an intermediate detail document.
func (p *Progress) SetDetail(ctx context.Context, detail any) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal task detail: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(ctx, Update{Detail: raw})
}

// Completed returns the last reported completed count.
func (p *Progress) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// Total returns the last known total count.
func (p *Progress) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// TotalReported reports whether the handler recorded a total through
// SetTotal or Report, as opposed to the count the task was created with.
func (p *Progress) TotalReported() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reported
}

// Stopped reports whether the task was aborted or deleted underneath the
// handler.
func (p *Progress) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// write must be called with p.mu held. Writes outlive handler cancellation
// so the counters of items that finish during a shutdown are still kept.
func (p *Progress) write(ctx context.Context, u Update) error {
	if p.stopped {
		return nil
	}

	if _, err := p.store.Update(context.WithoutCancel(ctx), p.taskID, u); err != nil {
		if isBenignWriteError(err) {
			p.stopped = true
			p.logger.Info("task was aborted or deleted, stopping new work", "error", err)
			p.cancel()
			return nil
		}
		p.logger.Warn("failed to record task progress", "error", err)
		return err
	}
	return nil
}
