package model

type Project struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UserID int64  `json:"userId"`
}

// ProjectDetail is a project together with all of its tasks.
type ProjectDetail struct {
	Project
	TaskItems []Task `json:"taskItems"`
}
