package board

import (
	"context"
	"errors"
	"testing"

	"trackit/internal/apperr"
	"trackit/internal/model"
	"trackit/internal/store/memstore"
)

func TestBoardViews(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	p := &model.Project{Name: "Alpha", UserID: 1}
	if err := st.CreateProject(ctx, p); err != nil {
		t.Fatal(err)
	}
	for _, title := range []string{"Design", "Build", "Ship"} {
		if err := st.CreateTask(ctx, 1, &model.Task{Title: title, ProjectID: p.ID}); err != nil {
			t.Fatal(err)
		}
	}
	tasks, _ := st.ListTasksByProject(ctx, p.ID)
	if _, err := st.UpdateTaskStatus(ctx, 1, tasks[2].ID, model.StatusDone); err != nil {
		t.Fatal(err)
	}

	svc := NewService(st, st)

	detail, err := svc.GetProject(ctx, 1, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if detail.Name != "Alpha" || len(detail.TaskItems) != 3 {
		t.Errorf("detail = %+v", detail)
	}

	b, err := svc.GetBoard(ctx, 1, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Columns[model.StatusToDo].Tasks) != 2 || len(b.Columns[model.StatusDone].Tasks) != 1 {
		t.Errorf("columns = %+v", b.Columns)
	}

	if _, err := svc.GetProject(ctx, 2, p.ID); !errors.Is(err, apperr.ErrNotFoundOrForbidden) {
		t.Errorf("foreign GetProject err = %v", err)
	}
	if _, err := svc.GetBoard(ctx, 1, 999); !errors.Is(err, apperr.ErrNotFoundOrForbidden) {
		t.Errorf("missing GetBoard err = %v", err)
	}
}
