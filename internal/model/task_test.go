package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStatusWireValues(t *testing.T) {
	tests := []struct {
		status TaskStatus
		wire   int
		name   string
	}{
		{StatusToDo, 0, "ToDo"},
		{StatusInProgress, 1, "InProgress"},
		{StatusDone, 2, "Done"},
	}
	for _, tt := range tests {
		if int(tt.status) != tt.wire {
			t.Errorf("%s = %d, want %d", tt.name, int(tt.status), tt.wire)
		}
		if tt.status.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.status.String(), tt.name)
		}
	}
	if int(PriorityLow) != 0 || int(PriorityMedium) != 1 || int(PriorityHigh) != 2 {
		t.Error("priority wire values changed")
	}
}

func TestStatusValid(t *testing.T) {
	for _, v := range []int{-1, 3, 99} {
		if TaskStatus(v).Valid() {
			t.Errorf("TaskStatus(%d).Valid() = true", v)
		}
		if Priority(v).Valid() {
			t.Errorf("Priority(%d).Valid() = true", v)
		}
	}
}

func TestCanTransitionIsComplete(t *testing.T) {
	for _, from := range Statuses {
		for _, to := range Statuses {
			if !CanTransition(from, to) {
				t.Errorf("CanTransition(%v, %v) = false", from, to)
			}
		}
	}
	if CanTransition(StatusToDo, TaskStatus(7)) {
		t.Error("transition to an unknown status allowed")
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    TaskStatus
		wantErr bool
	}{
		{"ToDo", StatusToDo, false},
		{"1", StatusInProgress, false},
		{"Done", StatusDone, false},
		{"done", 0, true},
		{"3", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTaskJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Task{ID: 10, Title: "Design", Status: StatusInProgress, ProjectID: 1, Priority: PriorityHigh})
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"id":10`, `"projectId":1`, `"status":1`, `"priority":2`, `"dueDate":null`} {
		if !strings.Contains(s, want) {
			t.Errorf("%s missing %s", s, want)
		}
	}
}

func TestNewBoard(t *testing.T) {
	tasks := []Task{
		{ID: 1, Status: StatusDone},
		{ID: 2, Status: StatusToDo},
		{ID: 3, Status: StatusDone},
		{ID: 4, Status: TaskStatus(9)},
	}
	b := NewBoard(Project{ID: 1, Name: "Alpha"}, tasks)

	if len(b.Columns) != 3 {
		t.Fatalf("columns = %d", len(b.Columns))
	}
	counts := []int{1, 0, 2}
	for i, c := range b.Columns {
		if c.Status != Statuses[i] {
			t.Errorf("column %d status = %v", i, c.Status)
		}
		if len(c.Tasks) != counts[i] {
			t.Errorf("column %s has %d tasks, want %d", c.Name, len(c.Tasks), counts[i])
		}
	}
	if b.Columns[2].Tasks[0].ID != 1 || b.Columns[2].Tasks[1].ID != 3 {
		t.Error("column order not preserved")
	}
}
