// Package task implements the task status state machine: validation,
// owner-scoped persistence and the board signal after every commit.
package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"trackit/internal/apperr"
	"trackit/internal/model"
	"trackit/internal/realtime"
	"trackit/internal/store"
	"trackit/pkg/logger"
	"trackit/pkg/metrics"
	"trackit/pkg/otel"
)

type CreateTaskInput struct {
	ProjectID   int64
	Title       string
	Description *string
	DueDate     *time.Time
	Priority    model.Priority
}

// UpdateTaskInput replaces every field of a task. Version, when set, must
// equal the stored version.
type UpdateTaskInput struct {
	Title       string
	Description *string
	Status      model.TaskStatus
	DueDate     *time.Time
	Priority    model.Priority
	Version     *int64
}

type Service struct {
	tasks    store.TaskStore
	notifier realtime.Notifier
	logger   *zap.Logger
}

func NewService(tasks store.TaskStore, notifier realtime.Notifier, logger *zap.Logger) *Service {
	return &Service{tasks: tasks, notifier: notifier, logger: logger}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, "task."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", apperr.ErrInvalidArgument)
	}
	return title, nil
}

func validStatus(s model.TaskStatus) error {
	if !s.Valid() {
		return fmt.Errorf("%w: status %d is not one of 0, 1, 2", apperr.ErrInvalidArgument, int(s))
	}
	return nil
}

func validPriority(p model.Priority) error {
	if !p.Valid() {
		return fmt.Errorf("%w: priority %d is not one of 0, 1, 2", apperr.ErrInvalidArgument, int(p))
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, userID int64, in CreateTaskInput) (_ *model.Task, err error) {
	ctx, span := startSpan(ctx, "CreateTask", attribute.Int64("project.id", in.ProjectID))
	defer func() { endSpan(span, err) }()

	title, err := validTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := validPriority(in.Priority); err != nil {
		return nil, err
	}

	t := &model.Task{
		Title:       title,
		Description: in.Description,
		Status:      model.StatusToDo,
		ProjectID:   in.ProjectID,
		DueDate:     in.DueDate,
		Priority:    in.Priority,
	}
	if err := s.tasks.CreateTask(ctx, userID, t); err != nil {
		return nil, apperr.FromStore(err, fmt.Sprintf("project %d", in.ProjectID))
	}

	logger.WithTrace(ctx, s.logger).Info("Task created",
		zap.Int64("task_id", t.ID),
		zap.Int64("project_id", t.ProjectID),
	)
	s.notifier.BoardChanged(ctx, t.ProjectID)
	return t, nil
}

// GetTask reads a task for any authenticated caller.
func (s *Service) GetTask(ctx context.Context, taskID int64) (*model.Task, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, apperr.FromStore(err, fmt.Sprintf("task %d", taskID))
	}
	return t, nil
}

// UpdateTaskStatus moves a task to another column. Nothing is written and
// nothing is signalled unless every check passes.
func (s *Service) UpdateTaskStatus(ctx context.Context, userID, taskID int64, status model.TaskStatus) (err error) {
	ctx, span := startSpan(ctx, "UpdateTaskStatus",
		attribute.Int64("task.id", taskID),
		attribute.Int("task.status", int(status)),
	)
	defer func() { endSpan(span, err) }()

	current, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if err := validStatus(status); err != nil {
		return err
	}
	if err := checkTransition(current, status); err != nil {
		return err
	}

	change, err := s.tasks.UpdateTaskStatus(ctx, userID, taskID, status)
	if err != nil {
		return apperr.FromStore(err, fmt.Sprintf("task %d", taskID))
	}
	s.committed(ctx, taskID, change)
	return nil
}

func (s *Service) UpdateTask(ctx context.Context, userID, taskID int64, in UpdateTaskInput) (err error) {
	ctx, span := startSpan(ctx, "UpdateTask", attribute.Int64("task.id", taskID))
	defer func() { endSpan(span, err) }()

	current, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	title, err := validTitle(in.Title)
	if err != nil {
		return err
	}
	if err := validStatus(in.Status); err != nil {
		return err
	}
	if err := validPriority(in.Priority); err != nil {
		return err
	}
	if err := checkTransition(current, in.Status); err != nil {
		return err
	}

	change, err := s.tasks.UpdateTask(ctx, userID, store.TaskUpdate{
		ID:          taskID,
		Title:       title,
		Description: in.Description,
		Status:      in.Status,
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		Version:     in.Version,
	})
	if err != nil {
		return apperr.FromStore(err, fmt.Sprintf("task %d", taskID))
	}
	s.committed(ctx, taskID, change)
	return nil
}

func (s *Service) DeleteTask(ctx context.Context, userID, taskID int64) (err error) {
	ctx, span := startSpan(ctx, "DeleteTask", attribute.Int64("task.id", taskID))
	defer func() { endSpan(span, err) }()

	projectID, err := s.tasks.DeleteTask(ctx, userID, taskID)
	if err != nil {
		return apperr.FromStore(err, fmt.Sprintf("task %d", taskID))
	}
	logger.WithTrace(ctx, s.logger).Info("Task deleted",
		zap.Int64("task_id", taskID),
		zap.Int64("project_id", projectID),
	)
	s.notifier.BoardChanged(ctx, projectID)
	return nil
}

// ownedTask resolves the caller's task before any input is looked at, so a
// non-owner learns nothing beyond NotFoundOrForbidden. The write that follows
// is owner-scoped again.
func (s *Service) ownedTask(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	t, err := s.tasks.GetOwnedTask(ctx, userID, taskID)
	if err != nil {
		return nil, apperr.FromStore(err, fmt.Sprintf("task %d", taskID))
	}
	return t, nil
}

func checkTransition(current *model.Task, to model.TaskStatus) error {
	if !model.CanTransition(current.Status, to) {
		return fmt.Errorf("%w: cannot move task from %s to %s", apperr.ErrInvalidArgument, current.Status, to)
	}
	return nil
}

func (s *Service) committed(ctx context.Context, taskID int64, change store.StatusChange) {
	if change.From != change.To {
		metrics.IncrementTaskTransition(change.From.String(), change.To.String())
	}
	logger.WithTrace(ctx, s.logger).Info("Task updated",
		zap.Int64("task_id", taskID),
		zap.Int64("project_id", change.ProjectID),
		zap.Stringer("from", change.From),
		zap.Stringer("to", change.To),
		zap.Int64("version", change.Version),
	)
	s.notifier.BoardChanged(ctx, change.ProjectID)
}
