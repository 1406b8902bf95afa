package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"trackit/internal/model"
	"trackit/internal/store"
)

const taskColumns = `t.id, t.title, t.description, t.status, t.project_id, t.due_date, t.priority, t.version`

// ownedTaskFilter restricts t to tasks whose project belongs to the bound user.
const ownedTaskFilter = `t.project_id IN (SELECT id FROM projects WHERE user_id = ?)`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (model.Task, error) {
	var (
		t           model.Task
		description sql.NullString
		due         sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Title, &description, &t.Status, &t.ProjectID, &due, &t.Priority, &t.Version)
	if description.Valid {
		t.Description = &description.String
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return t, err
}

func (s *Store) CreateTask(ctx context.Context, userID int64, t *model.Task) error {
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO tasks (title, description, status, project_id, due_date, priority, version)
        SELECT ?, ?, ?, p.id, ?, ?, 1 FROM projects p WHERE p.id = ? AND p.user_id = ?
        RETURNING id, version`,
		t.Title, t.Description, int(t.Status), t.DueDate, int(t.Priority), t.ProjectID, userID,
	).Scan(&t.ID, &t.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("insert task: %w", err)
	}
	s.logger.Debug("Task inserted", zap.Int64("task_id", t.ID), zap.Int64("project_id", t.ProjectID))
	return nil
}

func (s *Store) GetTask(ctx context.Context, taskID int64) (*model.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, taskID))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) GetOwnedTask(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = ? AND `+ownedTaskFilter, taskID, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) ListTasksByProject(ctx context.Context, projectID int64) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.project_id = ? ORDER BY t.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// withOwnedTask runs fn in a transaction after loading the caller's task.
// SQLite's RETURNING only sees new values, so the old status is read first.
func (s *Store) withOwnedTask(ctx context.Context, userID, taskID int64, fn func(tx *sql.Tx, current model.Task) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanTask(tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = ? AND `+ownedTaskFilter, taskID, userID))
	if err != nil {
		return notFound(err)
	}
	if err := fn(tx, current); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpdateTaskStatus(ctx context.Context, userID, taskID int64, status model.TaskStatus) (store.StatusChange, error) {
	var change store.StatusChange
	err := s.withOwnedTask(ctx, userID, taskID, func(tx *sql.Tx, current model.Task) error {
		change = store.StatusChange{ProjectID: current.ProjectID, From: current.Status, To: status}
		return tx.QueryRowContext(ctx,
			`UPDATE tasks SET status = ?, version = version + 1 WHERE id = ? RETURNING version`,
			int(status), taskID,
		).Scan(&change.Version)
	})
	if err != nil {
		return store.StatusChange{}, err
	}
	return change, nil
}

func (s *Store) UpdateTask(ctx context.Context, userID int64, upd store.TaskUpdate) (store.StatusChange, error) {
	var change store.StatusChange
	err := s.withOwnedTask(ctx, userID, upd.ID, func(tx *sql.Tx, current model.Task) error {
		if upd.Version != nil && *upd.Version != current.Version {
			return store.ErrVersionMismatch
		}
		change = store.StatusChange{ProjectID: current.ProjectID, From: current.Status, To: upd.Status}
		return tx.QueryRowContext(ctx, `
            UPDATE tasks
            SET title = ?, description = COALESCE(?, description), status = ?,
                due_date = ?, priority = ?, version = version + 1
            WHERE id = ?
            RETURNING version`,
			upd.Title, upd.Description, int(upd.Status), upd.DueDate, int(upd.Priority), upd.ID,
		).Scan(&change.Version)
	})
	if err != nil {
		return store.StatusChange{}, err
	}
	return change, nil
}

func (s *Store) DeleteTask(ctx context.Context, userID, taskID int64) (int64, error) {
	var projectID int64
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM tasks
         WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE user_id = ?)
         RETURNING project_id`,
		taskID, userID,
	).Scan(&projectID)
	if err != nil {
		return 0, notFound(err)
	}
	return projectID, nil
}
