package board

import (
	"context"
	"fmt"

	"trackit/internal/apperr"
	"trackit/internal/model"
	"trackit/internal/store"
)

// Service assembles the read views a client refetches after a signal.
type Service struct {
	projects store.ProjectStore
	tasks    store.TaskStore
}

func NewService(projects store.ProjectStore, tasks store.TaskStore) *Service {
	return &Service{projects: projects, tasks: tasks}
}

func (s *Service) GetProject(ctx context.Context, userID, projectID int64) (*model.ProjectDetail, error) {
	p, err := s.projects.GetProjectForOwner(ctx, userID, projectID)
	if err != nil {
		return nil, apperr.FromStore(err, fmt.Sprintf("project %d", projectID))
	}
	tasks, err := s.tasks.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &model.ProjectDetail{Project: *p, TaskItems: tasks}, nil
}

func (s *Service) GetBoard(ctx context.Context, userID, projectID int64) (*model.Board, error) {
	detail, err := s.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	b := model.NewBoard(detail.Project, detail.TaskItems)
	return &b, nil
}
