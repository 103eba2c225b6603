package uc

import (
	"context"
	"fmt"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/task"
	"github.com/dallosh/analysis/pkg/logger"
)

// Restart removes derived files and puts the task back to added. The task
// record and its source dataset are kept.
func (o *Orchestrator) Restart(ctx context.Context, fileID string) (*task.Task, error) {
	t, err := o.repo.GetByFileID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := o.deleteDerived(ctx, t); err != nil {
		return nil, err
	}
	patch := task.StatusPatch(task.StatusAdded)
	patch.AwaitingResume = task.Ptr(false)
	patch.FileCleaned = &task.FileInfo{}
	patch.FileAnalysed = &task.FileInfo{}
	restarted, err := o.repo.Update(ctx, t.UID, patch, core.UserFromContext(ctx))
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Task restarted", "task_uid", t.UID, "file_id", fileID)
	return restarted, nil
}

// deleteDerived removes the cleaned then the analysed file. When a removal
// fails, refs of files already removed are cleared so the record never points
// at a deleted file.
func (o *Orchestrator) deleteDerived(ctx context.Context, t *task.Task) error {
	refs := []struct {
		info  task.FileInfo
		clear func(*task.Patch)
	}{
		{t.FileCleaned, func(p *task.Patch) { p.FileCleaned = &task.FileInfo{} }},
		{t.FileAnalysed, func(p *task.Patch) { p.FileAnalysed = &task.FileInfo{} }},
	}
	var removed task.Patch
	for _, ref := range refs {
		if !ref.info.HasPath() {
			continue
		}
		if err := o.files.DeleteDerived(ctx, *ref.info.Path); err != nil {
			o.clearRemoved(ctx, t, removed)
			return fmt.Errorf("deleting derived file: %w", err)
		}
		ref.clear(&removed)
	}
	return nil
}

func (o *Orchestrator) clearRemoved(ctx context.Context, t *task.Task, removed task.Patch) {
	if removed.IsEmpty() {
		return
	}
	if _, err := o.repo.Update(ctx, t.UID, removed, core.UserFromContext(ctx)); err != nil {
		logger.FromContext(ctx).Error("Failed to clear removed file refs", "file_id", t.FileID, "error", err)
	}
}
