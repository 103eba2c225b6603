package uc

import (
	"context"
	"fmt"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/task"
)

// The methods below are administrative passthroughs. They validate field
// shapes only and do not enforce pipeline ordering.

func (o *Orchestrator) FindAll(ctx context.Context, opts task.ListOptions) ([]*task.Task, int64, error) {
	return o.repo.List(ctx, opts)
}

func (o *Orchestrator) FindOne(ctx context.Context, uid core.ID) (*task.Task, error) {
	return o.repo.Get(ctx, uid)
}

func (o *Orchestrator) Update(ctx context.Context, uid core.ID, patch task.Patch) (*task.Task, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", task.ErrValidation)
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return o.repo.Update(ctx, uid, patch, core.UserFromContext(ctx))
}

func (o *Orchestrator) Delete(ctx context.Context, uid core.ID) error {
	return o.repo.Delete(ctx, uid)
}
