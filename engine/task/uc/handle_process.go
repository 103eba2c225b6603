package uc

import (
	"context"
	"fmt"
	"strings"

	"github.com/dallosh/analysis/engine/task"
	"github.com/dallosh/analysis/pkg/logger"
)

// HandleProcess publishes a pause, resume or stop request. Stop is advisory:
// the worker reports stopped once it honors it.
func (o *Orchestrator) HandleProcess(ctx context.Context, fileID string, action task.ProcessAction) error {
	if strings.TrimSpace(fileID) == "" {
		return fmt.Errorf("%w: missing file_id", task.ErrValidation)
	}
	if !action.Valid() {
		return fmt.Errorf("%w: unsupported event %q", task.ErrValidation, action)
	}
	undo := func() {}
	if action == task.ActionResume {
		var err error
		if undo, err = o.markAwaitingResume(ctx, fileID); err != nil {
			return err
		}
	}
	cmd := task.HandleProcessCommand{FileID: fileID, Event: action}
	if err := o.publish(ctx, task.RouteHandleProcess, cmd); err != nil {
		undo()
		return err
	}
	logger.FromContext(ctx).Info("Process command sent", "file_id", fileID, "event", action)
	return nil
}
