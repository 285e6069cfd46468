package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/phrazzld/dataset-forge/internal/store"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// taskRow is the gorm model of the tasks table.
type taskRow struct {
	ID             string     `gorm:"primaryKey;type:text"`
	ProjectID      string     `gorm:"not null;index:idx_tasks_project_create_at,priority:1"`
	TaskType       string     `gorm:"not null"`
	Status         int        `gorm:"not null;default:0;index"`
	ModelInfo      string     `gorm:"type:text"`
	Language       string     `gorm:"not null;default:en"`
	TotalCount     int        `gorm:"not null;default:0"`
	CompletedCount int        `gorm:"not null;default:0"`
	Detail         string     `gorm:"type:text"`
	Note           string     `gorm:"not null;default:''"`
	CreateAt       time.Time  `gorm:"not null;index:idx_tasks_project_create_at,priority:2"`
	EndTime        *time.Time
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (taskRow) TableName() string { return "tasks" }

func rowFromTask(t *task.Task) taskRow {
	return taskRow{
		ID:             t.ID.String(),
		ProjectID:      t.ProjectID,
		TaskType:       string(t.TaskType),
		Status:         int(t.Status),
		ModelInfo:      string(t.ModelInfo),
		Language:       t.Language,
		TotalCount:     t.TotalCount,
		CompletedCount: t.CompletedCount,
		Detail:         string(t.Detail),
		Note:           t.Note,
		CreateAt:       t.CreateAt.UTC(),
		EndTime:        utcPtr(t.EndTime),
		UpdatedAt:      t.UpdatedAt.UTC(),
	}
}

func (r taskRow) toTask() (*task.Task, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", r.ID, err)
	}
	t := &task.Task{
		ID:             id,
		ProjectID:      r.ProjectID,
		TaskType:       task.Type(r.TaskType),
		Status:         task.Status(r.Status),
		Language:       r.Language,
		TotalCount:     r.TotalCount,
		CompletedCount: r.CompletedCount,
		Note:           r.Note,
		CreateAt:       r.CreateAt.UTC(),
		EndTime:        utcPtr(r.EndTime),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.ModelInfo != "" {
		t.ModelInfo = json.RawMessage(r.ModelInfo)
	}
	if r.Detail != "" {
		t.Detail = json.RawMessage(r.Detail)
	}
	return t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// GormTaskStore implements task.Store on SQLite through gorm.
type GormTaskStore struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Ensure GormTaskStore implements task.Store
var _ task.Store = (*GormTaskStore)(nil)

// Open opens (creating if needed) the SQLite database at path and migrates
// the tasks table.
func Open(path string, logger *slog.Logger) (*GormTaskStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	// SQLite allows a single writer; one connection avoids "database is locked".
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return NewGormTaskStore(db, logger)
}

// NewGormTaskStore wraps an open gorm connection and migrates the schema.
func NewGormTaskStore(db *gorm.DB, logger *slog.Logger) (*GormTaskStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&taskRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tasks table: %w", err)
	}
	return &GormTaskStore{
		db:     db,
		logger: logger.With("component", "task_store", "driver", "sqlite"),
		now:    time.Now,
	}, nil
}

// Close closes the underlying connection.
func (s *GormTaskStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts a new task.
func (s *GormTaskStore) Create(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	row := rowFromTask(t)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: task %s", store.ErrDuplicate, t.ID)
		}
		s.logger.Error("failed to insert task", "task_id", t.ID, "error", err)
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Get retrieves a task by ID.
func (s *GormTaskStore) Get(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return s.get(s.db.WithContext(ctx), id)
}

func (s *GormTaskStore) get(db *gorm.DB, id uuid.UUID) (*task.Task, error) {
	var row taskRow
	if err := db.First(&row, "id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return row.toTask()
}

// List returns a page of tasks matching q, newest first, and the total
// number of matches.
func (s *GormTaskStore) List(ctx context.Context, q task.ListQuery) ([]*task.Task, int, error) {
	q = q.Normalize()

	query := s.db.WithContext(ctx).Model(&taskRow{})
	if q.ProjectID != "" {
		query = query.Where("project_id = ?", q.ProjectID)
	}
	if q.TaskType != "" {
		query = query.Where("task_type = ?", string(q.TaskType))
	}
	if q.Status != nil {
		query = query.Where("status = ?", int(*q.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	var rows []taskRow
	err := query.Order("create_at DESC").Limit(q.Limit).Offset(q.Offset()).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks, err := toTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, int(total), nil
}

// Update applies u in a transaction. The conditional UPDATE guarantees a
// terminal task is never modified even if another writer got there first.
func (s *GormTaskStore) Update(ctx context.Context, id uuid.UUID, u task.Update) (*task.Task, error) {
	var updated *task.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.get(tx, id)
		if err != nil {
			return err
		}
		if err := task.Apply(current, u, s.now()); err != nil {
			return err
		}

		res := tx.Model(&taskRow{}).
			Where("id = ? AND status = ?", id.String(), int(task.StatusProcessing)).
			Updates(map[string]any{
				"status":          int(current.Status),
				"total_count":     current.TotalCount,
				"completed_count": current.CompletedCount,
				"detail":          string(current.Detail),
				"note":            current.Note,
				"end_time":        utcPtr(current.EndTime),
				"updated_at":      current.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: task %s changed concurrently", task.ErrTaskTerminal, id)
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a task.
func (s *GormTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&taskRow{}, "id = ?", id.String())
	if res.Error != nil {
		return fmt.Errorf("failed to delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.ErrNotFound
	}
	return nil
}

// ListProcessing returns Processing tasks, oldest first. A non-zero
// olderThan restricts the result to tasks not updated within that window.
func (s *GormTaskStore) ListProcessing(ctx context.Context, olderThan time.Duration) ([]*task.Task, error) {
	query := s.db.WithContext(ctx).Where("status = ?", int(task.StatusProcessing))
	if olderThan > 0 {
		query = query.Where("updated_at <= ?", s.now().Add(-olderThan).UTC())
	}

	var rows []taskRow
	if err := query.Order("create_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list processing tasks: %w", err)
	}
	return toTasks(rows)
}

func toTasks(rows []taskRow) ([]*task.Task, error) {
	tasks := make([]*task.Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
