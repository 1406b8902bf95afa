// Package memstore is a process-local store.Store used by tests and the
// "memory" storage driver.
package memstore

import (
	"context"
	"sort"
	"sync"

	"trackit/internal/model"
	"trackit/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[int64]model.User
	projects map[int64]model.Project
	tasks    map[int64]model.Task
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[int64]model.User),
		projects: make(map[int64]model.Project),
		tasks:    make(map[int64]model.Task),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	u.ID = s.id()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProject(_ context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.id()
	s.projects[p.ID] = *p
	return nil
}

func (s *Store) ListProjectsByOwner(_ context.Context, userID int64) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Project{}
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// owned must be called with the lock held.
func (s *Store) owned(userID, projectID int64) (model.Project, bool) {
	p, ok := s.projects[projectID]
	return p, ok && p.UserID == userID
}

func (s *Store) GetProjectForOwner(_ context.Context, userID, projectID int64) (*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.owned(userID, projectID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) RenameProject(_ context.Context, userID, projectID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.owned(userID, projectID)
	if !ok {
		return store.ErrNotFound
	}
	p.Name = name
	s.projects[projectID] = p
	return nil
}

func (s *Store) DeleteProject(_ context.Context, userID, projectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owned(userID, projectID); !ok {
		return store.ErrNotFound
	}
	for id, t := range s.tasks {
		if t.ProjectID == projectID {
			delete(s.tasks, id)
		}
	}
	delete(s.projects, projectID)
	return nil
}

func (s *Store) CreateTask(_ context.Context, userID int64, t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owned(userID, t.ProjectID); !ok {
		return store.ErrNotFound
	}
	t.ID = s.id()
	t.Version = 1
	s.tasks[t.ID] = *t
	return nil
}

func (s *Store) GetTask(_ context.Context, taskID int64) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) GetOwnedTask(_ context.Context, userID, taskID int64) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.ownedTask(userID, taskID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListTasksByProject(_ context.Context, projectID int64) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Task{}
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ownedTask must be called with the lock held.
func (s *Store) ownedTask(userID, taskID int64) (model.Task, bool) {
	t, ok := s.tasks[taskID]
	if !ok {
		return model.Task{}, false
	}
	_, ok = s.owned(userID, t.ProjectID)
	return t, ok
}

func (s *Store) UpdateTaskStatus(_ context.Context, userID, taskID int64, status model.TaskStatus) (store.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.ownedTask(userID, taskID)
	if !ok {
		return store.StatusChange{}, store.ErrNotFound
	}
	change := store.StatusChange{ProjectID: t.ProjectID, From: t.Status, To: status}
	t.Status = status
	t.Version++
	s.tasks[taskID] = t
	change.Version = t.Version
	return change, nil
}

func (s *Store) UpdateTask(_ context.Context, userID int64, upd store.TaskUpdate) (store.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.ownedTask(userID, upd.ID)
	if !ok {
		return store.StatusChange{}, store.ErrNotFound
	}
	if upd.Version != nil && *upd.Version != t.Version {
		return store.StatusChange{}, store.ErrVersionMismatch
	}

	change := store.StatusChange{ProjectID: t.ProjectID, From: t.Status, To: upd.Status}
	t.Title = upd.Title
	if upd.Description != nil {
		d := *upd.Description
		t.Description = &d
	}
	t.Status = upd.Status
	t.DueDate = upd.DueDate
	t.Priority = upd.Priority
	t.Version++
	s.tasks[t.ID] = t
	change.Version = t.Version
	return change, nil
}

func (s *Store) DeleteTask(_ context.Context, userID, taskID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.ownedTask(userID, taskID)
	if !ok {
		return 0, store.ErrNotFound
	}
	delete(s.tasks, taskID)
	return t.ProjectID, nil
}
