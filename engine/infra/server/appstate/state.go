package appstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/dallosh/analysis/engine/infra/monitoring"
	"github.com/dallosh/analysis/engine/streaming"
	"github.com/dallosh/analysis/engine/task/uc"
	"github.com/dallosh/analysis/pkg/config"
	"github.com/gin-gonic/gin"
)

type contextKey string

const (
	stateKey contextKey = "app_state"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type BaseDeps struct {
	Config        *config.Config
	Tasks         *uc.Orchestrator
	Broadcaster   *streaming.Broadcaster
	Events        streaming.Publisher
	StreamMetrics *monitoring.StreamingMetrics
}

func NewBaseDeps(
	cfg *config.Config,
	tasks *uc.Orchestrator,
	broadcaster *streaming.Broadcaster,
	events streaming.Publisher,
	metrics *monitoring.StreamingMetrics,
) BaseDeps {
	return BaseDeps{
		Config:        cfg,
		Tasks:         tasks,
		Broadcaster:   broadcaster,
		Events:        events,
		StreamMetrics: metrics,
	}
}

type State struct {
	BaseDeps
	mu     sync.RWMutex
	checks map[string]HealthCheck
}

func NewState(deps BaseDeps) (*State, error) {
	if deps.Tasks == nil {
		return nil, fmt.Errorf("task orchestrator is required")
	}
	if deps.Broadcaster == nil || deps.Events == nil {
		return nil, fmt.Errorf("event broadcaster and publisher are required")
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	return &State{
		BaseDeps: deps,
		checks:   make(map[string]HealthCheck),
	}, nil
}

func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

func GetState(ctx context.Context) (*State, error) {
	state, ok := ctx.Value(stateKey).(*State)
	if !ok {
		return nil, fmt.Errorf("app state not found in context")
	}
	return state, nil
}

// RegisterHealthCheck adds or replaces the named readiness probe.
func (s *State) RegisterHealthCheck(name string, check HealthCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// CheckHealth runs every probe and returns each outcome by name.
func (s *State) CheckHealth(ctx context.Context) map[string]error {
	s.mu.RLock()
	checks := make(map[string]HealthCheck, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.mu.RUnlock()
	results := make(map[string]error, len(checks))
	for name, check := range checks {
		results[name] = check(ctx)
	}
	return results
}

func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithState(c.Request.Context(), state)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
