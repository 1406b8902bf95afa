package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"trackit/internal/model"
	"trackit/internal/store"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `id, title, description, status, project_id, due_date, priority, version`

func scanTask(row pgx.Row) (model.Task, error) {
	var (
		t                model.Task
		status, priority int16
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.ProjectID, &t.DueDate, &priority, &t.Version)
	t.Status = model.TaskStatus(status)
	t.Priority = model.Priority(priority)
	return t, err
}

// CreateTask inserts only when the project belongs to userID.
func (r *TaskRepository) CreateTask(ctx context.Context, userID int64, t *model.Task) error {
	r.logger.Debug("Inserting task",
		zap.Int64("project_id", t.ProjectID),
		zap.Int64("user_id", userID),
		zap.String("title", t.Title),
	)
	query := `
        INSERT INTO tasks (title, description, status, project_id, due_date, priority, version)
        SELECT $1::text, $2::text, $3::smallint, p.id, $4::timestamptz, $5::smallint, 1
        FROM projects p
        WHERE p.id = $6 AND p.user_id = $7
        RETURNING id, version
    `
	err := r.db.QueryRow(ctx, query,
		t.Title,
		t.Description,
		int16(t.Status),
		t.DueDate,
		int16(t.Priority),
		t.ProjectID,
		userID,
	).Scan(&t.ID, &t.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		r.logger.Error("Failed to insert task", zap.Int64("project_id", t.ProjectID), zap.Error(err))
		return err
	}
	r.logger.Info("Task inserted successfully",
		zap.Int64("task_id", t.ID),
		zap.Int64("project_id", t.ProjectID),
	)
	return nil
}

func (r *TaskRepository) GetTask(ctx context.Context, taskID int64) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TaskRepository) GetOwnedTask(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE id = $1
          AND project_id IN (SELECT id FROM projects WHERE user_id = $2)
    `
	t, err := scanTask(r.db.QueryRow(ctx, query, taskID, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TaskRepository) ListTasksByProject(ctx context.Context, projectID int64) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan task row", zap.Int64("project_id", projectID), zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus joins through projects so a foreign task matches no row.
// The self-join on "prev" exposes the pre-update status to RETURNING.
func (r *TaskRepository) UpdateTaskStatus(ctx context.Context, userID, taskID int64, status model.TaskStatus) (store.StatusChange, error) {
	query := `
        UPDATE tasks t
        SET status = $3, version = t.version + 1
        FROM projects p, tasks prev
        WHERE t.id = $1 AND prev.id = t.id
          AND p.id = t.project_id AND p.user_id = $2
        RETURNING t.project_id, prev.status, t.status, t.version
    `
	change, err := scanChange(r.db.QueryRow(ctx, query, taskID, userID, int16(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.StatusChange{}, store.ErrNotFound
		}
		r.logger.Error("Failed to update task status", zap.Int64("task_id", taskID), zap.Error(err))
		return store.StatusChange{}, err
	}
	return change, nil
}

func (r *TaskRepository) UpdateTask(ctx context.Context, userID int64, upd store.TaskUpdate) (store.StatusChange, error) {
	query := `
        UPDATE tasks t
        SET title = $3,
            description = COALESCE($4::text, t.description),
            status = $5,
            due_date = $6,
            priority = $7,
            version = t.version + 1
        FROM projects p, tasks prev
        WHERE t.id = $1 AND prev.id = t.id
          AND p.id = t.project_id AND p.user_id = $2
          AND ($8::bigint IS NULL OR t.version = $8)
        RETURNING t.project_id, prev.status, t.status, t.version
    `
	change, err := scanChange(r.db.QueryRow(ctx, query,
		upd.ID,
		userID,
		upd.Title,
		upd.Description,
		int16(upd.Status),
		upd.DueDate,
		int16(upd.Priority),
		upd.Version,
	))
	if err == nil {
		return change, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("Failed to update task", zap.Int64("task_id", upd.ID), zap.Error(err))
		return store.StatusChange{}, err
	}
	if upd.Version == nil {
		return store.StatusChange{}, store.ErrNotFound
	}

	// no row: either not ours or the version moved on
	var exists bool
	err = r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM tasks t JOIN projects p ON p.id = t.project_id
            WHERE t.id = $1 AND p.user_id = $2
        )`, upd.ID, userID).Scan(&exists)
	if err != nil {
		return store.StatusChange{}, err
	}
	if exists {
		return store.StatusChange{}, store.ErrVersionMismatch
	}
	return store.StatusChange{}, store.ErrNotFound
}

func (r *TaskRepository) DeleteTask(ctx context.Context, userID, taskID int64) (int64, error) {
	query := `
        DELETE FROM tasks t
        USING projects p
        WHERE t.id = $1 AND p.id = t.project_id AND p.user_id = $2
        RETURNING t.project_id
    `
	var projectID int64
	if err := r.db.QueryRow(ctx, query, taskID, userID).Scan(&projectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		r.logger.Error("Failed to delete task", zap.Int64("task_id", taskID), zap.Error(err))
		return 0, err
	}
	r.logger.Info("Task deleted", zap.Int64("task_id", taskID), zap.Int64("project_id", projectID))
	return projectID, nil
}

func scanChange(row pgx.Row) (store.StatusChange, error) {
	var (
		c        store.StatusChange
		from, to int16
	)
	if err := row.Scan(&c.ProjectID, &from, &to, &c.Version); err != nil {
		return store.StatusChange{}, err
	}
	c.From = model.TaskStatus(from)
	c.To = model.TaskStatus(to)
	return c, nil
}
