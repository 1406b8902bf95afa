package model

// Column holds the tasks of one status, in id order.
type Column struct {
	Status TaskStatus `json:"status"`
	Name   string     `json:"name"`
	Tasks  []Task     `json:"tasks"`
}

// Board is a project split into its three status columns.
type Board struct {
	Project Project  `json:"project"`
	Columns []Column `json:"columns"`
}

// NewBoard groups tasks by status. Tasks with an unknown status are left out.
func NewBoard(p Project, tasks []Task) Board {
	b := Board{Project: p, Columns: make([]Column, len(Statuses))}
	for i, st := range Statuses {
		b.Columns[i] = Column{Status: st, Name: st.String(), Tasks: []Task{}}
	}
	for _, t := range tasks {
		if t.Status.Valid() {
			col := &b.Columns[t.Status]
			col.Tasks = append(col.Tasks, t)
		}
	}
	return b
}
