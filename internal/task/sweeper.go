package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Owner reports whether a task's handler is running in this process.
type Owner interface {
	Owns(id uuid.UUID) bool
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	// StaleAge is how long a Processing task may go without an update
	// before it is considered abandoned.
	StaleAge time.Duration
	// Schedule is a cron expression or descriptor such as "@every 5m".
	Schedule string
}

// Sweeper fails Processing tasks that no process is running any more, so
// clients polling them always reach a terminal status.
type Sweeper struct {
	store  Store
	owner  Owner
	config SweeperConfig
	logger *slog.Logger
	cron   *cron.Cron
}

// NewSweeper creates a Sweeper. owner is usually the local Dispatcher.
func NewSweeper(store Store, owner Owner, config SweeperConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:  store,
		owner:  owner,
		config: config,
		logger: logger.With("component", "task_sweeper"),
	}
}

// RecoverOrphans fails every Processing task not owned by this process. It
// is meant to run once at startup, before new tasks are accepted, to close
// out tasks interrupted by a restart.
func (s *Sweeper) RecoverOrphans(ctx context.Context) (int, error) {
	return s.failUnowned(ctx, 0, "interrupted: service restarted")
}

// Sweep fails Processing tasks not owned by this process that have not been
// updated for StaleAge.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	return s.failUnowned(ctx, s.config.StaleAge,
		fmt.Sprintf("interrupted: no progress for %s", s.config.StaleAge))
}

func (s *Sweeper) failUnowned(ctx context.Context, olderThan time.Duration, reason string) (int, error) {
	tasks, err := s.store.ListProcessing(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to list processing tasks: %w", err)
	}

	failed := 0
	for _, t := range tasks {
		if s.owner != nil && s.owner.Owns(t.ID) {
			continue
		}
		if _, err := s.store.Update(ctx, t.ID, FailUpdate(reason)); err != nil {
			if isBenignWriteError(err) {
				continue
			}
			s.logger.Error("failed to mark abandoned task as failed",
				"task_id", t.ID,
				"error", err)
			continue
		}
		s.logger.Warn("marked abandoned task as failed",
			"task_id", t.ID,
			"task_type", t.TaskType,
			"last_update", t.UpdatedAt,
			"reason", reason)
		failed++
	}
	return failed, nil
}

// Start schedules Sweep on the configured cron schedule.
func (s *Sweeper) Start() error {
	if s.config.StaleAge <= 0 {
		return fmt.Errorf("stale age must be positive, got %s", s.config.StaleAge)
	}

	c := cron.New()
	_, err := c.AddFunc(s.config.Schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("task sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.config.Schedule, err)
	}

	s.cron = c
	c.Start()
	s.logger.Info("task sweeper started",
		"schedule", s.config.Schedule,
		"stale_age", s.config.StaleAge.String())
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("task sweeper stopped")
}
