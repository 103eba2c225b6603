package task

import (
	"context"

	"github.com/dallosh/analysis/engine/core"
)

// Repository is the typed view of the Task Store. Lookups of a missing task
// return ErrTaskNotFound.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, uid core.ID) (*Task, error)
	GetByFileID(ctx context.Context, fileID string) (*Task, error)
	List(ctx context.Context, opts ListOptions) ([]*Task, int64, error)
	Update(ctx context.Context, uid core.ID, patch Patch, actor string) (*Task, error)
	Delete(ctx context.Context, uid core.ID) error
}
