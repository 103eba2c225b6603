package server

import (
	"fmt"
	"strings"

	"github.com/dallosh/analysis/engine/infra/server/appstate"
	"github.com/dallosh/analysis/engine/infra/server/middleware/auth"
	"github.com/dallosh/analysis/engine/infra/server/middleware/ratelimit"
	"github.com/dallosh/analysis/engine/infra/server/middleware/size"
	"github.com/dallosh/analysis/engine/infra/server/routes"
	"github.com/dallosh/analysis/pkg/config"
	"github.com/dallosh/analysis/pkg/logger"
	"github.com/dallosh/analysis/pkg/version"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// commandMiddleware guards the state changing lifecycle routes with a body
// size cap and, when enabled, the per client rate limiter.
func (s *Server) commandMiddleware(cfg *config.Config) ([]gin.HandlerFunc, error) {
	log := logger.FromContext(s.ctx)
	handlers := []gin.HandlerFunc{size.BodySizeLimiter(size.DefaultBodyLimit)}
	if !cfg.RateLimit.Enabled {
		return handlers, nil
	}
	if err := ratelimit.InitMetrics(s.monitoring.Meter()); err != nil {
		log.Warn("Rate limit metrics not initialized", "error", err)
	}
	var client redis.UniversalClient
	driver := driverMemory
	if s.redis != nil {
		client = s.redis.Client()
		driver = driverRedis
	}
	manager, err := ratelimit.NewManager(ratelimit.FromAppConfig(cfg.RateLimit), client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiting: %w", err)
	}
	log.Info("Rate limiter initialized",
		"driver", driver,
		"limit", cfg.RateLimit.Limit,
		"period", cfg.RateLimit.Period)
	return append(handlers, manager.Middleware()), nil
}

func (s *Server) buildRouter(state *appstate.State) error {
	cfg := config.FromContext(s.ctx)
	if cfg.Runtime.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.Use(s.monitoring.GinMiddleware())
		r.GET(cfg.Monitoring.Path, gin.WrapH(s.monitoring.ExporterHandler()))
	}
	r.Use(LoggerMiddleware(logger.FromContext(s.ctx)))
	r.Use(appstate.StateMiddleware(state))
	r.Use(auth.ActorMiddleware())
	commands, err := s.commandMiddleware(cfg)
	if err != nil {
		return err
	}
	RegisterRoutes(s.ctx, r, state, commands...)
	s.router = r
	return nil
}

func (s *Server) logStartupBanner() {
	log := logger.FromContext(s.ctx)
	cfg := config.FromContext(s.ctx)
	httpURL := fmt.Sprintf("http://%s:%d", friendlyHost(s.serverConfig.Host), s.serverConfig.Port)
	lines := []string{
		fmt.Sprintf("Dallosh task service %s", version.Get().Version),
		fmt.Sprintf("  API           > %s%s", httpURL, routes.Base()),
		fmt.Sprintf("  Health        > %s%s", httpURL, routes.HealthVersioned()),
		fmt.Sprintf("  Task stream   > %s%s", httpURL, routes.Streams()),
		fmt.Sprintf("  Event stream  > %s (%s)", s.streamDriver, cfg.Stream.Channel),
		fmt.Sprintf("  Broker        > %s", cfg.Broker.Exchange),
	}
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		lines = append(lines, fmt.Sprintf("  Metrics       > %s%s", httpURL, cfg.Monitoring.Path))
	}
	log.Info("\n" + strings.Join(lines, "\n"))
}

func friendlyHost(h string) string {
	if h == hostAny || h == "::" || h == "" {
		return hostLoopback
	}
	return h
}
