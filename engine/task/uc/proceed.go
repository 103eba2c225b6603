package uc

import (
	"context"
	"errors"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/task"
	"github.com/dallosh/analysis/pkg/logger"
)

type ProceedInput struct {
	FileID   string
	FilePath string
}

// Proceed queues the task for fileID, creating it when absent, and publishes
// one proceed_task command. The stored file path follows the one sent to the
// workers. Callers gate repeat calls with Task.CanProceed.
func (o *Orchestrator) Proceed(ctx context.Context, in ProceedInput) (*task.Task, error) {
	if err := requireFields(map[string]string{"file_id": in.FileID, "file_path": in.FilePath}); err != nil {
		return nil, err
	}
	if err := o.ensureAI(ctx); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("file_id", in.FileID)
	actor := core.UserFromContext(ctx)
	current, err := o.findOrCreate(ctx, in, actor)
	if err != nil {
		return nil, err
	}
	patch := task.StatusPatch(task.StatusInQueue)
	patch.AwaitingResume = task.Ptr(false)
	if current.FilePath != in.FilePath {
		patch.FilePath = task.Ptr(in.FilePath)
	}
	queued, err := o.repo.Update(ctx, current.UID, patch, actor)
	if err != nil {
		return nil, err
	}
	cmd := task.ProceedCommand{FileID: in.FileID, FilePath: in.FilePath}
	if err := o.publish(ctx, task.RouteProceedTask, cmd); err != nil {
		revert := task.Patch{
			Status:         task.Ptr(current.Status),
			Stage:          task.Ptr(current.Stage),
			AwaitingResume: task.Ptr(current.AwaitingResume),
		}
		if patch.FilePath != nil {
			revert.FilePath = task.Ptr(current.FilePath)
		}
		if _, rerr := o.repo.Update(ctx, current.UID, revert, actor); rerr != nil {
			log.Error("Failed to revert task after publish failure", "error", rerr)
		}
		return nil, err
	}
	log.Info("Task proceeded", "task_uid", queued.UID)
	return queued, nil
}

func (o *Orchestrator) findOrCreate(ctx context.Context, in ProceedInput, actor string) (*task.Task, error) {
	t, err := o.repo.GetByFileID(ctx, in.FileID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, task.ErrTaskNotFound) {
		return nil, err
	}
	t, err = task.NewTask(task.CreateInput{FileID: in.FileID, FilePath: in.FilePath}, actor, o.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := o.repo.Create(ctx, t); err != nil {
		if errors.Is(err, task.ErrTaskExists) {
			return o.repo.GetByFileID(ctx, in.FileID)
		}
		return nil, err
	}
	return t, nil
}
