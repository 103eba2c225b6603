package uc

import (
	"context"
	"errors"
	"fmt"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/task"
	"github.com/dallosh/analysis/pkg/logger"
)

type RetryInput struct {
	FileID        string
	FilePath      string
	LastEventStep task.Status
}

// RetryStep asks the workers to resume from LastEventStep. The stored status
// is left alone; the task is only marked as awaiting the resumed events.
func (o *Orchestrator) RetryStep(ctx context.Context, in RetryInput) error {
	err := requireFields(map[string]string{
		"file_id":         in.FileID,
		"file_path":       in.FilePath,
		"last_event_step": in.LastEventStep.String(),
	})
	if err != nil {
		return err
	}
	if !in.LastEventStep.Valid() {
		return fmt.Errorf("%w: unknown last_event_step %q", task.ErrValidation, in.LastEventStep)
	}
	if err := o.ensureAI(ctx); err != nil {
		return err
	}
	undo, err := o.markAwaitingResume(ctx, in.FileID)
	if err != nil {
		return err
	}
	cmd := task.RetryCommand{FileID: in.FileID, FilePath: in.FilePath, LastEventStep: in.LastEventStep}
	if err := o.publish(ctx, task.RouteRetryStep, cmd); err != nil {
		undo()
		return err
	}
	logger.FromContext(ctx).Info("Retry requested", "file_id", in.FileID, "step", in.LastEventStep)
	return nil
}

// markAwaitingResume flags the task for fileID, if any, and returns a func
// that restores the previous flag.
func (o *Orchestrator) markAwaitingResume(ctx context.Context, fileID string) (func(), error) {
	noop := func() {}
	t, err := o.repo.GetByFileID(ctx, fileID)
	if errors.Is(err, task.ErrTaskNotFound) {
		return noop, nil
	}
	if err != nil {
		return nil, err
	}
	if t.AwaitingResume {
		return noop, nil
	}
	actor := core.UserFromContext(ctx)
	if _, err := o.repo.Update(ctx, t.UID, task.Patch{AwaitingResume: task.Ptr(true)}, actor); err != nil {
		return nil, err
	}
	return func() {
		_, rerr := o.repo.Update(ctx, t.UID, task.Patch{AwaitingResume: task.Ptr(false)}, actor)
		if rerr != nil {
			logger.FromContext(ctx).Error("Failed to clear resume flag", "file_id", fileID, "error", rerr)
		}
	}, nil
}
