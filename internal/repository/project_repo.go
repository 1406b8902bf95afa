package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"trackit/internal/model"
	"trackit/internal/store"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

func (r *ProjectRepository) CreateProject(ctx context.Context, p *model.Project) error {
	query := `
        INSERT INTO projects (name, user_id)
        VALUES ($1, $2)
        RETURNING id
    `
	if err := r.db.QueryRow(ctx, query, p.Name, p.UserID).Scan(&p.ID); err != nil {
		r.logger.Error("Failed to insert project", zap.Int64("user_id", p.UserID), zap.Error(err))
		return err
	}
	r.logger.Info("Project created", zap.Int64("project_id", p.ID), zap.Int64("user_id", p.UserID))
	return nil
}

func (r *ProjectRepository) ListProjectsByOwner(ctx context.Context, userID int64) ([]model.Project, error) {
	query := `
        SELECT id, name, user_id
        FROM projects
        WHERE user_id = $1
        ORDER BY id
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query projects", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.UserID); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) GetProjectForOwner(ctx context.Context, userID, projectID int64) (*model.Project, error) {
	query := `
        SELECT id, name, user_id
        FROM projects
        WHERE id = $1 AND user_id = $2
    `
	var p model.Project
	if err := r.db.QueryRow(ctx, query, projectID, userID).Scan(&p.ID, &p.Name, &p.UserID); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *ProjectRepository) RenameProject(ctx context.Context, userID, projectID int64, name string) error {
	tag, err := r.db.Exec(ctx, `UPDATE projects SET name = $1 WHERE id = $2 AND user_id = $3`, name, projectID, userID)
	if err != nil {
		r.logger.Error("Failed to rename project", zap.Int64("project_id", projectID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteProject relies on ON DELETE CASCADE to drop the tasks in the same statement.
func (r *ProjectRepository) DeleteProject(ctx context.Context, userID, projectID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.Int64("project_id", projectID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	r.logger.Info("Project deleted", zap.Int64("project_id", projectID), zap.Int64("user_id", userID))
	return nil
}
