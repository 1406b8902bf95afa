// Package storetest is a conformance suite every store.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"trackit/internal/model"
	"trackit/internal/store"
)

// Run exercises s through the full store contract. s must be empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	alice := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	bob := &model.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x"}
	mustNil(t, s.CreateUser(ctx, alice))
	mustNil(t, s.CreateUser(ctx, bob))

	t.Run("users", func(t *testing.T) {
		dup := &model.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"}
		if err := s.CreateUser(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
			t.Errorf("duplicate username err = %v", err)
		}
		dup = &model.User{Username: "carol", Email: "alice@example.com", PasswordHash: "x"}
		if err := s.CreateUser(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
			t.Errorf("duplicate email err = %v", err)
		}

		u, err := s.FindUserByUsername(ctx, "alice")
		mustNil(t, err)
		if u.ID != alice.ID || u.PasswordHash != "x" {
			t.Errorf("FindUserByUsername = %+v", u)
		}
		if _, err := s.FindUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("missing user err = %v", err)
		}
	})

	alpha := &model.Project{Name: "Alpha", UserID: alice.ID}
	mustNil(t, s.CreateProject(ctx, alpha))

	t.Run("projects", func(t *testing.T) {
		beta := &model.Project{Name: "Beta", UserID: bob.ID}
		mustNil(t, s.CreateProject(ctx, beta))

		list, err := s.ListProjectsByOwner(ctx, alice.ID)
		mustNil(t, err)
		if len(list) != 1 || list[0].ID != alpha.ID {
			t.Errorf("alice projects = %+v", list)
		}

		if _, err := s.GetProjectForOwner(ctx, bob.ID, alpha.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("foreign GetProjectForOwner err = %v", err)
		}
		if err := s.RenameProject(ctx, bob.ID, alpha.ID, "Hijacked"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("foreign rename err = %v", err)
		}
		mustNil(t, s.RenameProject(ctx, alice.ID, alpha.ID, "Alpha 2"))
		p, err := s.GetProjectForOwner(ctx, alice.ID, alpha.ID)
		mustNil(t, err)
		if p.Name != "Alpha 2" {
			t.Errorf("name = %q", p.Name)
		}

		if err := s.DeleteProject(ctx, alice.ID, beta.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("foreign delete err = %v", err)
		}
	})

	t.Run("tasks", func(t *testing.T) {
		desc := "first pass"
		due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		task := &model.Task{
			Title:       "Design",
			Description: &desc,
			ProjectID:   alpha.ID,
			DueDate:     &due,
			Priority:    model.PriorityHigh,
		}
		mustNil(t, s.CreateTask(ctx, alice.ID, task))
		if task.ID == 0 || task.Version != 1 {
			t.Fatalf("created task = %+v", task)
		}

		foreign := &model.Task{Title: "Nope", ProjectID: alpha.ID}
		if err := s.CreateTask(ctx, bob.ID, foreign); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("foreign create err = %v", err)
		}

		got, err := s.GetTask(ctx, task.ID)
		mustNil(t, err)
		if got.Status != model.StatusToDo || got.Title != "Design" || got.Priority != model.PriorityHigh {
			t.Errorf("GetTask = %+v", got)
		}
		if got.Description == nil || *got.Description != desc {
			t.Errorf("description = %v", got.Description)
		}
		if got.DueDate == nil || !got.DueDate.Equal(due) {
			t.Errorf("due date = %v", got.DueDate)
		}

		owned, err := s.GetOwnedTask(ctx, alice.ID, task.ID)
		mustNil(t, err)
		if owned.ID != task.ID || owned.ProjectID != alpha.ID {
			t.Errorf("GetOwnedTask = %+v", owned)
		}
		if _, err := s.GetOwnedTask(ctx, bob.ID, task.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("foreign GetOwnedTask err = %v", err)
		}
		if _, err := s.GetOwnedTask(ctx, alice.ID, 999999); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("missing GetOwnedTask err = %v", err)
		}

		change, err := s.UpdateTaskStatus(ctx, alice.ID, task.ID, model.StatusInProgress)
		mustNil(t, err)
		if change.ProjectID != alpha.ID || change.From != model.StatusToDo || change.To != model.StatusInProgress || change.Version != 2 {
			t.Errorf("status change = %+v", change)
		}

		if _, err := s.UpdateTaskStatus(ctx, bob.ID, task.ID, model.StatusDone); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("foreign status update err = %v", err)
		}
		if _, err := s.UpdateTaskStatus(ctx, alice.ID, 999999, model.StatusDone); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("missing task status update err = %v", err)
		}

		stale := int64(1)
		_, err = s.UpdateTask(ctx, alice.ID, store.TaskUpdate{ID: task.ID, Title: "X", Version: &stale})
		if !errors.Is(err, store.ErrVersionMismatch) {
			t.Errorf("stale version err = %v", err)
		}
		_, err = s.UpdateTask(ctx, bob.ID, store.TaskUpdate{ID: task.ID, Title: "X", Version: &stale})
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("foreign stale update err = %v", err)
		}

		current := int64(2)
		change, err = s.UpdateTask(ctx, alice.ID, store.TaskUpdate{
			ID:       task.ID,
			Title:    "Design v2",
			Status:   model.StatusDone,
			Priority: model.PriorityLow,
			Version:  &current,
		})
		mustNil(t, err)
		if change.From != model.StatusInProgress || change.To != model.StatusDone || change.Version != 3 {
			t.Errorf("full update change = %+v", change)
		}

		got, err = s.GetTask(ctx, task.ID)
		mustNil(t, err)
		if got.Title != "Design v2" || got.Status != model.StatusDone || got.Version != 3 {
			t.Errorf("after update = %+v", got)
		}
		if got.Description == nil || *got.Description != desc {
			t.Error("nil description should keep the stored value")
		}
		if got.DueDate != nil {
			t.Error("nil due date should clear the stored value")
		}

		second := &model.Task{Title: "Build", ProjectID: alpha.ID}
		mustNil(t, s.CreateTask(ctx, alice.ID, second))
		list, err := s.ListTasksByProject(ctx, alpha.ID)
		mustNil(t, err)
		if len(list) != 2 || list[0].ID != task.ID || list[1].ID != second.ID {
			t.Errorf("ListTasksByProject = %+v", list)
		}

		if _, err := s.DeleteTask(ctx, bob.ID, second.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("foreign delete err = %v", err)
		}
		pid, err := s.DeleteTask(ctx, alice.ID, second.ID)
		mustNil(t, err)
		if pid != alpha.ID {
			t.Errorf("DeleteTask project = %d", pid)
		}
		if _, err := s.GetTask(ctx, second.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("deleted task err = %v", err)
		}

		mustNil(t, s.DeleteProject(ctx, alice.ID, alpha.ID))
		if _, err := s.GetTask(ctx, task.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("task survived project delete: %v", err)
		}
		if _, err := s.GetProjectForOwner(ctx, alice.ID, alpha.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("project survived delete: %v", err)
		}
	})
}

func mustNil(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
