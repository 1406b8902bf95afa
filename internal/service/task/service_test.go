package task

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"trackit/internal/apperr"
	"trackit/internal/model"
	"trackit/internal/store/memstore"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []int64
}

func (n *recordingNotifier) BoardChanged(_ context.Context, projectID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, projectID)
}

func (n *recordingNotifier) take() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.calls
	n.calls = nil
	return out
}

type fixture struct {
	svc      *Service
	store    *memstore.Store
	notifier *recordingNotifier
	alice    int64
	bob      int64
	project  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()

	alice := &model.User{Username: "alice", Email: "a@example.com", PasswordHash: "x"}
	bob := &model.User{Username: "bob", Email: "b@example.com", PasswordHash: "x"}
	if err := st.CreateUser(ctx, alice); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateUser(ctx, bob); err != nil {
		t.Fatal(err)
	}
	p := &model.Project{Name: "Alpha", UserID: alice.ID}
	if err := st.CreateProject(ctx, p); err != nil {
		t.Fatal(err)
	}

	n := &recordingNotifier{}
	return &fixture{
		svc:      NewService(st, n, zap.NewNop()),
		store:    st,
		notifier: n,
		alice:    alice.ID,
		bob:      bob.ID,
		project:  p.ID,
	}
}

func (f *fixture) createTask(t *testing.T, title string) *model.Task {
	t.Helper()
	task, err := f.svc.CreateTask(context.Background(), f.alice, CreateTaskInput{ProjectID: f.project, Title: title})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	f.notifier.take()
	return task
}

func (f *fixture) status(t *testing.T, taskID int64) model.TaskStatus {
	t.Helper()
	task, err := f.svc.GetTask(context.Background(), taskID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	return task.Status
}

func assertPublishes(t *testing.T, n *recordingNotifier, want ...int64) {
	t.Helper()
	got := n.take()
	if len(got) != len(want) {
		t.Fatalf("publishes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("publish[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestCreateTaskStartsInToDo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.CreateTask(ctx, f.alice, CreateTaskInput{ProjectID: f.project, Title: "  Design  ", Priority: model.PriorityMedium})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	assertPublishes(t, f.notifier, f.project)

	got, err := f.svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusToDo || got.Title != "Design" || got.Version != 1 {
		t.Errorf("task = %+v", got)
	}
}

func TestCreateTaskRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID int64
		in     CreateTaskInput
		want   error
	}{
		{"blank title", f.alice, CreateTaskInput{ProjectID: f.project, Title: "  "}, apperr.ErrInvalidArgument},
		{"bad priority", f.alice, CreateTaskInput{ProjectID: f.project, Title: "x", Priority: 3}, apperr.ErrInvalidArgument},
		{"foreign project", f.bob, CreateTaskInput{ProjectID: f.project, Title: "x"}, apperr.ErrNotFoundOrForbidden},
		{"missing project", f.alice, CreateTaskInput{ProjectID: 999, Title: "x"}, apperr.ErrNotFoundOrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTask(ctx, tt.userID, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			assertPublishes(t, f.notifier)
		})
	}
}

func TestUpdateTaskStatusAllTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, "Design")

	for _, s := range model.Statuses {
		for i := 0; i < 2; i++ {
			if err := f.svc.UpdateTaskStatus(ctx, f.alice, task.ID, s); err != nil {
				t.Fatalf("UpdateTaskStatus(%v): %v", s, err)
			}
			if got := f.status(t, task.ID); got != s {
				t.Errorf("status = %v, want %v", got, s)
			}
			assertPublishes(t, f.notifier, f.project)
		}
	}
}

func TestUpdateTaskStatusOutOfRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, "Design")

	for _, s := range []model.TaskStatus{-1, 3, 42} {
		err := f.svc.UpdateTaskStatus(ctx, f.alice, task.ID, s)
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("status %d: err = %v", int(s), err)
		}
		if got := f.status(t, task.ID); got != model.StatusToDo {
			t.Errorf("status changed to %v", got)
		}
	}
	assertPublishes(t, f.notifier)
}

func TestNonOwnerGetsNotFoundEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, "Design")

	for _, id := range []int64{task.ID, 999} {
		errs := map[string]error{
			"status":              f.svc.UpdateTaskStatus(ctx, f.bob, id, model.StatusDone),
			"status out of range": f.svc.UpdateTaskStatus(ctx, f.bob, id, 7),
			"update":              f.svc.UpdateTask(ctx, f.bob, id, UpdateTaskInput{Title: "x"}),
			"update blank title":  f.svc.UpdateTask(ctx, f.bob, id, UpdateTaskInput{Title: " "}),
			"update bad status":   f.svc.UpdateTask(ctx, f.bob, id, UpdateTaskInput{Title: "x", Status: 9}),
			"update bad priority": f.svc.UpdateTask(ctx, f.bob, id, UpdateTaskInput{Title: "x", Priority: 4}),
			"delete":              f.svc.DeleteTask(ctx, f.bob, id),
		}
		for op, err := range errs {
			if !errors.Is(err, apperr.ErrNotFoundOrForbidden) {
				t.Errorf("%s on task %d: err = %v", op, id, err)
			}
		}
	}
	assertPublishes(t, f.notifier)

	if got := f.status(t, task.ID); got != model.StatusToDo {
		t.Errorf("status = %v", got)
	}
}

func TestUpdateTaskValidatesLikeStatusPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, "Design")

	tests := []struct {
		name string
		in   UpdateTaskInput
	}{
		{"status out of range", UpdateTaskInput{Title: "x", Status: 5}},
		{"priority out of range", UpdateTaskInput{Title: "x", Priority: -1}},
		{"blank title", UpdateTaskInput{Title: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.UpdateTask(ctx, f.alice, task.ID, tt.in)
			if !errors.Is(err, apperr.ErrInvalidArgument) {
				t.Errorf("err = %v", err)
			}
			assertPublishes(t, f.notifier)
		})
	}
}

func TestUpdateTaskVersionCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, "Design")
	desc := "keep me"
	if err := f.svc.UpdateTask(ctx, f.alice, task.ID, UpdateTaskInput{Title: "Design", Description: &desc}); err != nil {
		t.Fatal(err)
	}
	assertPublishes(t, f.notifier, f.project)

	stale := int64(1)
	err := f.svc.UpdateTask(ctx, f.alice, task.ID, UpdateTaskInput{Title: "Late", Version: &stale})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale update err = %v", err)
	}
	assertPublishes(t, f.notifier)

	current := int64(2)
	err = f.svc.UpdateTask(ctx, f.alice, task.ID, UpdateTaskInput{Title: "On time", Status: model.StatusDone, Version: &current})
	if err != nil {
		t.Fatalf("current update: %v", err)
	}
	assertPublishes(t, f.notifier, f.project)

	got, _ := f.svc.GetTask(ctx, task.ID)
	if got.Title != "On time" || got.Status != model.StatusDone || got.Version != 3 {
		t.Errorf("task = %+v", got)
	}
	if got.Description == nil || *got.Description != desc {
		t.Errorf("description = %v, want kept", got.Description)
	}
}

func TestDeleteTaskPublishesProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, "Design")

	if err := f.svc.DeleteTask(ctx, f.alice, task.ID); err != nil {
		t.Fatal(err)
	}
	assertPublishes(t, f.notifier, f.project)

	if _, err := f.svc.GetTask(ctx, task.ID); !errors.Is(err, apperr.ErrNotFoundOrForbidden) {
		t.Errorf("GetTask after delete err = %v", err)
	}
}

func TestDeleteProjectRemovesTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, "Design")

	if err := f.store.DeleteProject(ctx, f.alice, f.project); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.GetTask(ctx, task.ID); !errors.Is(err, apperr.ErrNotFoundOrForbidden) {
		t.Errorf("GetTask err = %v", err)
	}
}

// A creates Alpha and Design, moves it to InProgress; B cannot move it on.
func TestOwnershipScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, "Design")

	if err := f.svc.UpdateTaskStatus(ctx, f.alice, task.ID, model.StatusInProgress); err != nil {
		t.Fatal(err)
	}
	if got := f.status(t, task.ID); got != model.StatusInProgress {
		t.Fatalf("status = %v", got)
	}
	assertPublishes(t, f.notifier, f.project)

	err := f.svc.UpdateTaskStatus(ctx, f.bob, task.ID, model.StatusDone)
	if !errors.Is(err, apperr.ErrNotFoundOrForbidden) {
		t.Fatalf("bob err = %v", err)
	}
	if got := f.status(t, task.ID); got != model.StatusInProgress {
		t.Errorf("status = %v after rejected move", got)
	}
	assertPublishes(t, f.notifier)
}
