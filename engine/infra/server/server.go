package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dallosh/analysis/engine/infra/broker"
	"github.com/dallosh/analysis/engine/infra/cache"
	"github.com/dallosh/analysis/engine/infra/monitoring"
	"github.com/dallosh/analysis/engine/streaming"
	"github.com/dallosh/analysis/engine/task/ingest"
	"github.com/dallosh/analysis/pkg/config"
	"github.com/gin-gonic/gin"
)

const (
	statusNotReady            = "not_ready"
	statusReady               = "ready"
	monitoringShutdownTimeout = 5 * time.Second
	dbShutdownTimeout         = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	healthCheckTimeout        = 2 * time.Second
	httpReadHeaderTimeout     = 10 * time.Second
	hostAny                   = "0.0.0.0"
	hostLoopback              = "127.0.0.1"
	driverMemory              = "memory"
	driverRedis               = "redis"
)

// Background is a long running component started next to the HTTP server.
// It must return nil once ctx is canceled.
type Background struct {
	Name string
	Run  func(ctx context.Context) error
}

type Server struct {
	serverConfig *config.ServerConfig
	router       *gin.Engine
	monitoring   *monitoring.Service
	redis        *cache.Redis
	broker       *broker.Client
	ingestor     *ingest.Ingestor
	broadcaster  *streaming.Broadcaster
	ctx          context.Context
	cancel       context.CancelFunc
	httpServer   *http.Server
	background   []Background
	streamDriver string
	cleanupMu    sync.Mutex
	cleanups     []func()
}

// NewServer reads its configuration from ctx; attach one with
// config.ContextWithConfig first.
func NewServer(ctx context.Context) (*Server, error) {
	serverCtx, cancel := context.WithCancel(ctx)
	cfg := config.FromContext(serverCtx)
	if cfg == nil {
		cancel()
		return nil, fmt.Errorf("configuration missing from context; attach one with config.ContextWithConfig")
	}
	return &Server{
		serverConfig: &cfg.Server,
		ctx:          serverCtx,
		cancel:       cancel,
		streamDriver: driverMemory,
	}, nil
}

// addCleanup registers fn to run on shutdown. Cleanups run in reverse order.
func (s *Server) addCleanup(fn func()) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

func (s *Server) runCleanups() {
	s.cleanupMu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupMu.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Shutdown stops the server. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.cancel()
}
