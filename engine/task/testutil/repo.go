package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/task"
)

// InMemoryRepo is a task.Repository backed by a map, for handler and
// use-case tests.
type InMemoryRepo struct {
	mu    sync.Mutex
	tasks map[core.ID]*task.Task
}

func NewInMemoryRepo(tasks ...*task.Task) *InMemoryRepo {
	r := &InMemoryRepo{tasks: make(map[core.ID]*task.Task)}
	for _, t := range tasks {
		cp := *t
		r.tasks[t.UID] = &cp
	}
	return r
}

func (r *InMemoryRepo) Create(_ context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tasks {
		if existing.FileID == t.FileID {
			return task.ErrTaskExists
		}
	}
	cp := *t
	r.tasks[t.UID] = &cp
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, uid core.ID) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[uid]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *InMemoryRepo) GetByFileID(_ context.Context, fileID string) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.FileID == fileID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, task.ErrTaskNotFound
}

// List filters by status and file id and orders by creation time. Sort
// fields other than created_at are accepted but not honored.
func (r *InMemoryRepo) List(_ context.Context, opts task.ListOptions) ([]*task.Task, int64, error) {
	if err := opts.Validate(); err != nil {
		return nil, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]*task.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if opts.Status != nil && t.Status != *opts.Status {
			continue
		}
		if opts.FileID != "" && t.FileID != opts.FileID {
			continue
		}
		cp := *t
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if opts.Descending {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	if opts.Offset >= len(matched) {
		return []*task.Task{}, total, nil
	}
	end := min(opts.Offset+opts.Limit, len(matched))
	return matched[opts.Offset:end], total, nil
}

func (r *InMemoryRepo) Update(_ context.Context, uid core.ID, p task.Patch, actor string) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[uid]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	if p.FilePath != nil {
		t.FilePath = *p.FilePath
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Stage != nil {
		t.Stage = *p.Stage
	}
	if p.AwaitingResume != nil {
		t.AwaitingResume = *p.AwaitingResume
	}
	if p.FileCleaned != nil {
		t.FileCleaned = *p.FileCleaned
	}
	if p.FileAnalysed != nil {
		t.FileAnalysed = *p.FileAnalysed
	}
	t.UpdatedBy = actor
	cp := *t
	return &cp, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, uid core.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[uid]; !ok {
		return task.ErrTaskNotFound
	}
	delete(r.tasks, uid)
	return nil
}

// Len returns the number of stored tasks.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
