package uc

import (
	"context"
	"errors"
	"fmt"

	"github.com/dallosh/analysis/engine/task"
	"github.com/dallosh/analysis/pkg/logger"
)

// DeleteWithFiles removes every file of the task for fileID and then the task
// itself. It reports false without touching files when no task exists.
func (o *Orchestrator) DeleteWithFiles(ctx context.Context, fileID string) (bool, error) {
	t, err := o.repo.GetByFileID(ctx, fileID)
	if errors.Is(err, task.ErrTaskNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := o.deleteDerived(ctx, t); err != nil {
		return false, err
	}
	if err := o.files.DeleteDataset(ctx, t.FileID, t.FilePath); err != nil {
		return false, fmt.Errorf("deleting dataset: %w", err)
	}
	if err := o.repo.Delete(ctx, t.UID); err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			return false, nil
		}
		return false, err
	}
	logger.FromContext(ctx).Info("Task deleted with files", "task_uid", t.UID, "file_id", fileID)
	return true, nil
}
