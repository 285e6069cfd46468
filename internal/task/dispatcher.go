package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/redact"
)

// ErrShuttingDown is returned by CreateAndRun once Shutdown has begun.
var ErrShuttingDown = errors.New("task dispatcher is shutting down")

// CreateSpec describes a task to create.
type CreateSpec struct {
	ProjectID  string          `json:"project_id"`
	TaskType   Type            `json:"task_type"`
	ModelInfo  json.RawMessage `json:"model_info,omitempty"`
	Language   string          `json:"language,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	TotalCount int             `json:"total_count,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// DefaultLanguage is used when a CreateSpec has no language.
	DefaultLanguage string
	// MaxConcurrentTasks caps how many handlers run at once. Tasks beyond
	// the cap stay Processing until a slot frees up. Zero means unbounded.
	MaxConcurrentTasks int
	// FinalizeTimeout bounds the final status write of each task.
	FinalizeTimeout time.Duration
}

// DefaultDispatcherConfig returns the configuration used when fields are
// left zero.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		DefaultLanguage: "en",
		FinalizeTimeout: 10 * time.Second,
	}
}

// Dispatcher creates task records and runs their handlers in the
// background, recording the final status when each handler returns.
type Dispatcher struct {
	store    Store
	registry *Registry
	config   DispatcherConfig
	logger   *slog.Logger
	sem      *semaphore.Weighted
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[uuid.UUID]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Zero config fields take their
// defaults.
func NewDispatcher(store Store, registry *Registry, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = defaults.DefaultLanguage
	}
	if config.FinalizeTimeout <= 0 {
		config.FinalizeTimeout = defaults.FinalizeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:    store,
		registry: registry,
		config:   config,
		logger:   logger.With("component", "task_dispatcher"),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		running:  make(map[uuid.UUID]struct{}),
	}
	if config.MaxConcurrentTasks > 0 {
		d.sem = semaphore.NewWeighted(int64(config.MaxConcurrentTasks))
	}
	return d
}

// CreateAndRun persists a new Processing task and starts its handler in the
// background. It returns as soon as the record exists; the handler outcome is
// observable only through the store.
func (d *Dispatcher) CreateAndRun(ctx context.Context, spec CreateSpec) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	if strings.TrimSpace(spec.ProjectID) == "" {
		return uuid.Nil, fmt.Errorf("%w: project ID cannot be empty", ErrInvalidInput)
	}
	if spec.TotalCount < 0 {
		return uuid.Nil, fmt.Errorf("%w: total count cannot be negative", ErrInvalidInput)
	}
	handler, ok := d.registry.Lookup(spec.TaskType)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrNoHandler, spec.TaskType)
	}
	if v, ok := handler.(InputValidator); ok {
		if err := v.ValidateInput(spec); err != nil {
			if !errors.Is(err, ErrInvalidInput) {
				err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			return uuid.Nil, err
		}
	}

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return uuid.Nil, ErrShuttingDown
	}

	now := d.now().UTC()
	t := &Task{
		ID:         uuid.New(),
		ProjectID:  spec.ProjectID,
		TaskType:   spec.TaskType,
		Status:     StatusProcessing,
		ModelInfo:  cloneRaw(spec.ModelInfo),
		Language:   spec.Language,
		TotalCount: spec.TotalCount,
		Detail:     cloneRaw(spec.Detail),
		Note:       spec.Note,
		CreateAt:   now,
		UpdatedAt:  now,
	}
	if t.Language == "" {
		t.Language = d.config.DefaultLanguage
	}

	if err := d.store.Create(ctx, t); err != nil {
		log.Error("failed to create task", "error", redact.Error(err), "task_type", t.TaskType)
		return uuid.Nil, fmt.Errorf("failed to create task: %w", err)
	}

	if !d.start(t, handler) {
		// Shutdown began between the check above and now.
		d.finish(d.ctx, d.taskLogger(t), t, nil, nil, ErrShuttingDown)
		return t.ID, nil
	}

	log.Info("task created", "task_id", t.ID, "task_type", t.TaskType, "project_id", t.ProjectID)
	return t.ID, nil
}

func (d *Dispatcher) start(t *Task, h Handler) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	d.running[t.ID] = struct{}{}
	d.wg.Add(1)

	go d.run(t.Clone(), h)
	return true
}

func (d *Dispatcher) run(t *Task, h Handler) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		delete(d.running, t.ID)
		d.mu.Unlock()
	}()

	log := d.taskLogger(t)
	ctx, cancel := context.WithCancel(logger.WithLogger(d.ctx, log))
	defer cancel()

	if d.sem != nil {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.finish(ctx, log, t, nil, nil, fmt.Errorf("task was not started: %w", err))
			return
		}
		defer d.sem.Release(1)
	}

	log.Info("task started")
	started := time.Now()

	progress := newProgress(d.store, t, cancel, log)
	result, err := invoke(ctx, h, t, progress)
	d.finish(ctx, log, t, progress, result, err)

	log.Info("task handler returned", "duration_ms", time.Since(started).Milliseconds())
}

func invoke(ctx context.Context, h Handler, t *Task, p *Progress) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("task handler panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h.Handle(ctx, t, p)
}

// finish writes the task's final status. The write is detached from ctx so
// it happens even while the dispatcher shuts down.
func (d *Dispatcher) finish(ctx context.Context, log *slog.Logger, t *Task, p *Progress, result *Result, runErr error) {
	update := d.finalUpdate(log, p, result, runErr)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config.FinalizeTimeout)
	defer cancel()

	if _, err := d.store.Update(writeCtx, t.ID, update); err != nil {
		if isBenignWriteError(err) {
			log.Info("task outcome discarded, task was aborted or deleted", "error", err)
			return
		}
		log.Error("failed to record task outcome", "error", redact.Error(err))
		return
	}

	if update.Status != nil {
		log.Info("task finished", "status", update.Status.String())
	}
}

func (d *Dispatcher) finalUpdate(log *slog.Logger, p *Progress, result *Result, runErr error) Update {
	if runErr != nil {
		log.Error("task failed", "error", redact.Error(runErr))
		return FailUpdate(redact.Error(runErr))
	}

	completed := 0
	if p != nil {
		completed = p.Completed()
	}
	if result == nil {
		return finishedWithoutResult(p, completed)
	}

	var detail json.RawMessage
	if result.Detail != nil {
		raw, err := json.Marshal(result.Detail)
		if err != nil {
			log.Error("failed to marshal task result", "error", err)
			return FailUpdate(fmt.Sprintf("failed to marshal task result: %v", err))
		}
		detail = raw
	}

	note := result.Note
	if note == "" {
		note = "completed"
	}
	return CompleteUpdate(max(result.Total, completed), detail, note)
}

// finishedWithoutResult completes a task whose handler returned no Result.
// The counters keep what the handler reported; a TotalCount given at
// creation is left alone unless the handler recorded its own.
func finishedWithoutResult(p *Progress, completed int) Update {
	status := StatusCompleted
	note := "completed"
	u := Update{
		Status:         &status,
		CompletedCount: &completed,
		Note:           &note,
	}
	if p != nil && p.TotalReported() {
		total := p.Total()
		u.TotalCount = &total
	}
	return u
}

func (d *Dispatcher) taskLogger(t *Task) *slog.Logger {
	return d.logger.With(
		"task_id", t.ID,
		"task_type", t.TaskType,
		"project_id", t.ProjectID,
	)
}

// Owns reports whether a handler for id is running in this process.
func (d *Dispatcher) Owns(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.running[id]
	return ok
}

// Running returns the number of handlers currently running.
func (d *Dispatcher) Running() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.running)
}

// Wait blocks until every started handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting tasks and cancels running handlers so they stop
// scheduling new items, then waits for them to record their outcome or for
// ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.logger.Info("shutting down task dispatcher", "running", d.Running())
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("task dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}
