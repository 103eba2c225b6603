package routertest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dallosh/analysis/engine/infra/server/appstate"
	"github.com/dallosh/analysis/engine/infra/server/middleware/auth"
	"github.com/dallosh/analysis/engine/settings"
	"github.com/dallosh/analysis/engine/streaming"
	"github.com/dallosh/analysis/engine/task/testutil"
	"github.com/dallosh/analysis/engine/task/uc"
	"github.com/dallosh/analysis/pkg/config"
	"github.com/gin-gonic/gin"
)

// Command is a command captured by StubPublisher.
type Command struct {
	RoutingKey string
	Payload    map[string]any
}

// StubPublisher records published commands and can be made to fail.
type StubPublisher struct {
	mu       sync.Mutex
	err      error
	commands []Command
}

func (p *StubPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return err
	}
	p.commands = append(p.commands, Command{RoutingKey: routingKey, Payload: body})
	return nil
}

// SetError makes every following publish fail with err.
func (p *StubPublisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *StubPublisher) Commands() []Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Command(nil), p.commands...)
}

// StubSettings serves a fixed settings document.
type StubSettings struct {
	Settings *settings.Settings
	Err      error
}

func (s *StubSettings) Get(context.Context) (*settings.Settings, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Settings == nil {
		return nil, settings.ErrNotFound
	}
	return s.Settings, nil
}

// StubFiles records file deletions.
type StubFiles struct {
	mu       sync.Mutex
	Derived  []string
	Datasets []string
}

func (f *StubFiles) DeleteDerived(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Derived = append(f.Derived, path)
	return nil
}

func (f *StubFiles) DeleteDataset(_ context.Context, fileID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Datasets = append(f.Datasets, fileID)
	return nil
}

// Harness bundles an application state wired to in-memory collaborators.
type Harness struct {
	Repo        *testutil.InMemoryRepo
	Settings    *StubSettings
	Publisher   *StubPublisher
	Files       *StubFiles
	Broadcaster *streaming.Broadcaster
	Events      *streaming.MemoryPublisher
	State       *appstate.State
}

// NewHarness builds a state whose settings carry an AI section.
func NewHarness(t *testing.T, cfg *config.Config) *Harness {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	h := &Harness{
		Repo:      testutil.NewInMemoryRepo(),
		Settings:  &StubSettings{Settings: &settings.Settings{UID: "settings", AI: &settings.AIConfig{}}},
		Publisher: &StubPublisher{},
		Files:     &StubFiles{},
	}
	h.Broadcaster = streaming.NewBroadcaster(nil)
	events, err := streaming.NewMemoryPublisher(h.Broadcaster, &streaming.MemoryOptions{
		MaxEntries: cfg.Stream.BacklogSize,
		TTL:        time.Hour,
	})
	requireNoError(t, err)
	h.Events = events
	tasks := uc.NewOrchestrator(h.Repo, h.Settings, h.Publisher, h.Files)
	state, err := appstate.NewState(appstate.NewBaseDeps(cfg, tasks, h.Broadcaster, events, nil))
	requireNoError(t, err)
	h.State = state
	t.Cleanup(h.Broadcaster.Close)
	return h
}

// Engine returns a gin engine with the state and actor middleware installed
// and register mounted under /api/v0.
func (h *Harness) Engine(register func(*gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(appstate.StateMiddleware(h.State))
	r.Use(auth.ActorMiddleware())
	register(r.Group("/api/v0"))
	return r
}

func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
