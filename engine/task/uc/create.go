package uc

import (
	"context"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/task"
	"github.com/dallosh/analysis/pkg/logger"
)

// Create registers a task in the added state. Nothing is published.
func (o *Orchestrator) Create(ctx context.Context, in task.CreateInput) (*task.Task, error) {
	t, err := task.NewTask(in, core.UserFromContext(ctx), o.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := o.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Task created", "task_uid", t.UID, "file_id", t.FileID)
	return t, nil
}
