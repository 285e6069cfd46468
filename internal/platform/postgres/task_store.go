package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/store"
	"github.com/phrazzld/dataset-forge/internal/task"
)

const taskColumns = `id, project_id, task_type, status, model_info, language,
	total_count, completed_count, detail, note, create_at, end_time, updated_at`

// PostgresTaskStore implements task.Store using PostgreSQL.
type PostgresTaskStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Ensure PostgresTaskStore implements task.Store
var _ task.Store = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db *sql.DB, logger *slog.Logger) *PostgresTaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With("component", "task_store"),
		now:    time.Now,
	}
}

// Create inserts a new task.
func (s *PostgresTaskStore) Create(ctx context.Context, t *task.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := t.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.ProjectID,
		string(t.TaskType),
		int(t.Status),
		jsonArg(t.ModelInfo),
		t.Language,
		t.TotalCount,
		t.CompletedCount,
		jsonArg(t.Detail),
		t.Note,
		t.CreateAt.UTC(),
		t.EndTime,
		t.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to insert task",
			"task_id", t.ID,
			"task_type", t.TaskType,
			"error", err)
		return fmt.Errorf("failed to insert task: %w", MapError(err))
	}
	return nil
}

// Get retrieves a task by ID.
func (s *PostgresTaskStore) Get(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return s.get(ctx, s.db, id, false)
}

func (s *PostgresTaskStore) get(ctx context.Context, q store.DBTX, id uuid.UUID, forUpdate bool) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	t, err := scanTask(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", MapError(err))
	}
	return t, nil
}

// List returns a page of tasks matching q, newest first, and the total
// number of matches.
func (s *PostgresTaskStore) List(ctx context.Context, q task.ListQuery) ([]*task.Task, int, error) {
	q = q.Normalize()
	where, args := listFilter(q)

	var total int
	countQuery := `SELECT COUNT(*) FROM tasks` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", MapError(err))
	}

	pageArgs := append(args, q.Limit, q.Offset())
	query := fmt.Sprintf(`SELECT %s FROM tasks%s ORDER BY create_at DESC LIMIT $%d OFFSET $%d`,
		taskColumns, where, len(args)+1, len(args)+2)

	tasks, err := s.query(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func listFilter(q task.ListQuery) (string, []any) {
	var conditions []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if q.ProjectID != "" {
		add("project_id", q.ProjectID)
	}
	if q.TaskType != "" {
		add("task_type", string(q.TaskType))
	}
	if q.Status != nil {
		add("status", int(*q.Status))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Update applies u inside a transaction holding a row lock, so concurrent
// writers serialize and a terminal task is never modified.
func (s *PostgresTaskStore) Update(ctx context.Context, id uuid.UUID, u task.Update) (*task.Task, error) {
	var updated *task.Task

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		current, err := s.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := task.Apply(current, u, s.now()); err != nil {
			return err
		}

		query := `
			UPDATE tasks
			SET status = $2, total_count = $3, completed_count = $4, detail = $5,
				note = $6, end_time = $7, updated_at = $8
			WHERE id = $1 AND status = 0
		`
		result, err := tx.ExecContext(ctx, query,
			id,
			int(current.Status),
			current.TotalCount,
			current.CompletedCount,
			jsonArg(current.Detail),
			current.Note,
			current.EndTime,
			current.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", MapError(err))
		}
		if err := CheckRowsAffected(result, "task"); err != nil {
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
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", MapError(err))
	}
	if err := CheckRowsAffected(result, "task"); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return task.ErrNotFound
		}
		return err
	}
	return nil
}

// ListProcessing returns Processing tasks, oldest first. A non-zero
// olderThan restricts the result to tasks not updated within that window.
func (s *PostgresTaskStore) ListProcessing(ctx context.Context, olderThan time.Duration) ([]*task.Task, error) {
	if olderThan <= 0 {
		return s.query(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE status = 0 ORDER BY create_at ASC`)
	}
	cutoff := s.now().Add(-olderThan).UTC()
	return s.query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = 0 AND updated_at <= $1 ORDER BY create_at ASC`,
		cutoff)
}

func (s *PostgresTaskStore) query(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("failed to close rows", "error", err)
		}
	}()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", MapError(err))
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t         task.Task
		taskType  string
		status    int
		modelInfo []byte
		detail    []byte
	)
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&taskType,
		&status,
		&modelInfo,
		&t.Language,
		&t.TotalCount,
		&t.CompletedCount,
		&detail,
		&t.Note,
		&t.CreateAt,
		&t.EndTime,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.TaskType = task.Type(taskType)
	t.Status = task.Status(status)
	if len(modelInfo) > 0 {
		t.ModelInfo = json.RawMessage(modelInfo)
	}
	if len(detail) > 0 {
		t.Detail = json.RawMessage(detail)
	}
	return &t, nil
}

// jsonArg passes raw JSON as a JSONB parameter, or NULL when empty.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
