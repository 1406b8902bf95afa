package project

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"trackit/internal/apperr"
	"trackit/internal/model"
	"trackit/internal/realtime"
	"trackit/internal/store"
)

type Service struct {
	projects store.ProjectStore
	notifier realtime.Notifier
	logger   *zap.Logger
}

func NewService(projects store.ProjectStore, notifier realtime.Notifier, logger *zap.Logger) *Service {
	return &Service{projects: projects, notifier: notifier, logger: logger}
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: project name is required", apperr.ErrInvalidArgument)
	}
	return name, nil
}

func (s *Service) ListProjects(ctx context.Context, userID int64) ([]model.Project, error) {
	return s.projects.ListProjectsByOwner(ctx, userID)
}

func (s *Service) GetProject(ctx context.Context, userID, projectID int64) (*model.Project, error) {
	p, err := s.projects.GetProjectForOwner(ctx, userID, projectID)
	if err != nil {
		return nil, apperr.FromStore(err, fmt.Sprintf("project %d", projectID))
	}
	return p, nil
}

func (s *Service) CreateProject(ctx context.Context, userID int64, name string) (*model.Project, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	p := &model.Project{Name: name, UserID: userID}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) RenameProject(ctx context.Context, userID, projectID int64, name string) error {
	name, err := validName(name)
	if err != nil {
		return err
	}
	if err := s.projects.RenameProject(ctx, userID, projectID, name); err != nil {
		return apperr.FromStore(err, fmt.Sprintf("project %d", projectID))
	}
	s.notifier.BoardChanged(ctx, projectID)
	return nil
}

// DeleteProject removes the project with its tasks. Open boards are told so
// that their refetch surfaces the 404.
func (s *Service) DeleteProject(ctx context.Context, userID, projectID int64) error {
	if err := s.projects.DeleteProject(ctx, userID, projectID); err != nil {
		return apperr.FromStore(err, fmt.Sprintf("project %d", projectID))
	}
	s.logger.Info("Project deleted", zap.Int64("project_id", projectID), zap.Int64("user_id", userID))
	s.notifier.BoardChanged(ctx, projectID)
	return nil
}

// Authorize returns nil when userID owns projectID.
func (s *Service) Authorize(ctx context.Context, userID, projectID int64) error {
	_, err := s.GetProject(ctx, userID, projectID)
	return err
}
