// Package store defines the persistence contract shared by the Postgres,
// SQLite and in-memory backends.
//
// Every mutating task and project call is scoped to an owner. A row that
// does not exist and a row owned by somebody else are indistinguishable:
// both yield ErrNotFound.
package store

import (
	"context"
	"errors"
	"time"

	"trackit/internal/model"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrDuplicate       = errors.New("store: duplicate")
	ErrVersionMismatch = errors.New("store: version mismatch")
)

// StatusChange describes the column move a committed task write made.
type StatusChange struct {
	ProjectID int64
	From      model.TaskStatus
	To        model.TaskStatus
	Version   int64
}

// TaskUpdate carries a full task replace. A nil Description keeps the stored
// one, a nil DueDate clears it and a nil Version skips the concurrency check.
type TaskUpdate struct {
	ID          int64
	Title       string
	Description *string
	Status      model.TaskStatus
	DueDate     *time.Time
	Priority    model.Priority
	Version     *int64
}

type UserStore interface {
	// CreateUser sets u.ID. A taken username or email is ErrDuplicate.
	CreateUser(ctx context.Context, u *model.User) error
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type ProjectStore interface {
	// CreateProject sets p.ID.
	CreateProject(ctx context.Context, p *model.Project) error
	ListProjectsByOwner(ctx context.Context, userID int64) ([]model.Project, error)
	GetProjectForOwner(ctx context.Context, userID, projectID int64) (*model.Project, error)
	RenameProject(ctx context.Context, userID, projectID int64, name string) error
	// DeleteProject removes the project and all of its tasks atomically.
	DeleteProject(ctx context.Context, userID, projectID int64) error
}

type TaskStore interface {
	// CreateTask inserts t into t.ProjectID if userID owns that project and
	// sets t.ID and t.Version.
	CreateTask(ctx context.Context, userID int64, t *model.Task) error
	GetTask(ctx context.Context, taskID int64) (*model.Task, error)
	// GetOwnedTask is GetTask restricted to tasks in userID's projects.
	GetOwnedTask(ctx context.Context, userID, taskID int64) (*model.Task, error)
	ListTasksByProject(ctx context.Context, projectID int64) ([]model.Task, error)
	UpdateTaskStatus(ctx context.Context, userID, taskID int64, status model.TaskStatus) (StatusChange, error)
	UpdateTask(ctx context.Context, userID int64, upd TaskUpdate) (StatusChange, error)
	// DeleteTask returns the project the task belonged to.
	DeleteTask(ctx context.Context, userID, taskID int64) (int64, error)
}

type Store interface {
	UserStore
	ProjectStore
	TaskStore
	Ping(ctx context.Context) error
	Close()
}
