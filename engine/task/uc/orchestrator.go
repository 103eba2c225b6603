package uc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dallosh/analysis/engine/settings"
	"github.com/dallosh/analysis/engine/task"
)

// Publisher dispatches a command to the worker fleet.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// FileStore deletes physical files that belong to a task.
type FileStore interface {
	DeleteDerived(ctx context.Context, path string) error
	DeleteDataset(ctx context.Context, fileID, path string) error
}

// Orchestrator drives tasks through their lifecycle. It persists transitions
// through the repository and dispatches commands through the publisher; it
// never retries a failed publish.
type Orchestrator struct {
	repo      task.Repository
	settings  settings.Reader
	publisher Publisher
	files     FileStore
	now       func() time.Time
}

type Option func(*Orchestrator)

// WithClock overrides the time source used for new tasks.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func NewOrchestrator(
	repo task.Repository,
	settingsReader settings.Reader,
	publisher Publisher,
	files FileStore,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		repo:      repo,
		settings:  settingsReader,
		publisher: publisher,
		files:     files,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ensureAI fails unless a settings document with an AI section exists.
func (o *Orchestrator) ensureAI(ctx context.Context) error {
	s, err := o.settings.Get(ctx)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			return task.ErrSettingsNotFound
		}
		return fmt.Errorf("loading settings: %w", err)
	}
	if !s.HasAI() {
		return task.ErrAIConfigMissing
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, routingKey string, payload any) error {
	if err := o.publisher.Publish(ctx, routingKey, payload); err != nil {
		if errors.Is(err, task.ErrBrokerUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", task.ErrBrokerUnavailable, err)
	}
	return nil
}

func requireFields(fields map[string]string) error {
	var missing []string
	for _, name := range []string{"file_id", "file_path", "last_event_step"} {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", task.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
