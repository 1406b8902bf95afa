package model

import (
	"fmt"
	"time"
)

// TaskStatus is the board column of a task. The integer values are part of
// the wire contract.
type TaskStatus int

const (
	StatusToDo TaskStatus = iota
	StatusInProgress
	StatusDone
)

// Statuses lists every status in board column order.
var Statuses = []TaskStatus{StatusToDo, StatusInProgress, StatusDone}

func (s TaskStatus) Valid() bool {
	return s >= StatusToDo && s <= StatusDone
}

func (s TaskStatus) String() string {
	switch s {
	case StatusToDo:
		return "ToDo"
	case StatusInProgress:
		return "InProgress"
	case StatusDone:
		return "Done"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// ParseStatus accepts a column name or its integer value.
func ParseStatus(s string) (TaskStatus, error) {
	for _, st := range Statuses {
		if s == st.String() || s == fmt.Sprint(int(st)) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown task status %q", s)
}

// CanTransition reports whether a task may move from one status to another.
// Every pair of valid statuses is allowed, including staying put.
func CanTransition(from, to TaskStatus) bool {
	return from.Valid() && to.Valid()
}

type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`
	ProjectID   int64      `json:"projectId"`
	DueDate     *time.Time `json:"dueDate"`
	Priority    Priority   `json:"priority"`
	Version     int64      `json:"version"`
}
