package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dallosh/analysis/engine/infra/broker"
	"github.com/dallosh/analysis/engine/infra/cache"
	"github.com/dallosh/analysis/engine/infra/filestore"
	"github.com/dallosh/analysis/engine/infra/monitoring"
	"github.com/dallosh/analysis/engine/infra/postgres"
	"github.com/dallosh/analysis/engine/infra/pubsub"
	"github.com/dallosh/analysis/engine/infra/server/appstate"
	"github.com/dallosh/analysis/engine/settings"
	"github.com/dallosh/analysis/engine/streaming"
	"github.com/dallosh/analysis/engine/task/ingest"
	"github.com/dallosh/analysis/engine/task/uc"
	"github.com/dallosh/analysis/pkg/config"
	"github.com/dallosh/analysis/pkg/logger"
)

var errBrokerNotConnected = errors.New("broker not connected")

func (s *Server) setupMonitoring(cfg *config.Config) {
	log := logger.FromContext(s.ctx)
	start := time.Now()
	service := monitoring.NewServiceWithFallback(s.ctx, cfg.Monitoring)
	s.monitoring = service
	if !service.IsInitialized() {
		log.Info("Monitoring is disabled in the configuration", "duration", time.Since(start))
		return
	}
	service.SetAsGlobal()
	log.Info("Monitoring service initialized successfully",
		"path", cfg.Monitoring.Path,
		"duration", time.Since(start))
	s.addCleanup(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), monitoringShutdownTimeout)
		defer cancel()
		if err := service.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown monitoring service", "error", err)
		}
	})
}

func (s *Server) setupStore(cfg *config.Config) (*postgres.Store, error) {
	log := logger.FromContext(s.ctx)
	dsn := cfg.Database.DSN()
	if cfg.Database.AutoMigrate {
		start := time.Now()
		if err := postgres.ApplyMigrationsWithLock(s.ctx, dsn); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("Database migrations applied", "duration", time.Since(start))
	}
	store, err := postgres.NewStore(s.ctx, postgres.ConfigFrom(&cfg.Database), s.monitoring.Meter())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	s.addCleanup(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), dbShutdownTimeout)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			log.Error("Failed to close store", "error", err)
		}
	})
	return store, nil
}

// setupRedis connects only when Redis is enabled; a nil client selects the
// single instance memory mode everywhere.
func (s *Server) setupRedis(cfg *config.Config) error {
	if !cfg.Redis.Enabled {
		return nil
	}
	r, err := cache.NewRedis(s.ctx, cache.ConfigFrom(&cfg.Redis))
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.redis = r
	s.addCleanup(func() {
		_ = r.Close()
	})
	return nil
}

func (s *Server) setupBroker(cfg *config.Config, metrics *monitoring.TaskMetrics) {
	s.broker = broker.NewClient(broker.Config{
		URL:            cfg.Broker.URL.Value(),
		Exchange:       cfg.Broker.Exchange,
		Heartbeat:      cfg.Broker.Heartbeat,
		ConnectRetries: cfg.Broker.ConnectRetries,
		ConnectBackoff: cfg.Broker.ConnectBackoff,
	}, broker.WithMetrics(metrics))
	s.addCleanup(func() {
		if err := s.broker.Disconnect(context.WithoutCancel(s.ctx)); err != nil {
			logger.FromContext(s.ctx).Error("Failed to disconnect from broker", "error", err)
		}
	})
}

// setupStreaming picks the event backlog: a Redis log plus a relay that feeds
// frames from every instance into the local broadcaster, or process memory.
func (s *Server) setupStreaming(
	cfg *config.Config,
	metrics *monitoring.StreamingMetrics,
) (*streaming.Broadcaster, streaming.Publisher, error) {
	broadcaster := streaming.NewBroadcaster(metrics)
	s.broadcaster = broadcaster
	s.addCleanup(broadcaster.Close)
	if s.redis == nil {
		events, err := streaming.NewMemoryPublisher(broadcaster, &streaming.MemoryOptions{
			MaxEntries: cfg.Stream.BacklogSize,
			TTL:        cfg.Stream.BacklogTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		s.streamDriver = driverMemory
		return broadcaster, events, nil
	}
	events, err := streaming.NewRedisPublisher(s.redis.Client(), &streaming.RedisOptions{
		Channel:    cfg.Stream.Channel,
		MaxEntries: cfg.Stream.BacklogSize,
		TTL:        cfg.Stream.BacklogTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	provider, err := pubsub.NewRedisProvider(s.redis.Client())
	if err != nil {
		return nil, nil, err
	}
	relay := streaming.NewRelay(provider, events.Channel(), broadcaster)
	s.background = append(s.background, Background{Name: "stream_relay", Run: relay.Run})
	s.streamDriver = driverRedis
	return broadcaster, events, nil
}

func (s *Server) setupDependencies() (*appstate.State, error) {
	cfg := config.FromContext(s.ctx)
	log := logger.FromContext(s.ctx)
	s.setupMonitoring(cfg)
	taskMetrics, err := monitoring.NewTaskMetrics(s.monitoring.Meter())
	if err != nil {
		log.Warn("Task metrics not initialized", "error", err)
	}
	streamMetrics, err := monitoring.NewStreamingMetrics(s.monitoring.Meter())
	if err != nil {
		log.Warn("Streaming metrics not initialized", "error", err)
	}
	store, err := s.setupStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.setupRedis(cfg); err != nil {
		return nil, err
	}
	s.setupBroker(cfg, taskMetrics)
	broadcaster, events, err := s.setupStreaming(cfg, streamMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to set up event stream: %w", err)
	}

	taskRepo := postgres.NewTaskRepo(store.Pool())
	settingsReader := settings.NewCachedReader(postgres.NewSettingsRepo(store.Pool()), cfg.Settings.CacheTTL)
	files := filestore.NewOS(cfg.Storage.Path, postgres.NewFileRecords(store.Pool()))
	tasks := uc.NewOrchestrator(taskRepo, settingsReader, s.broker, files)

	s.ingestor = ingest.New(ingest.Config{
		Queue:     cfg.Broker.Queue,
		Prefetch:  cfg.Broker.Prefetch,
		RetryBase: cfg.Broker.ConnectBackoff,
	}, s.broker, taskRepo, events, ingest.WithMetrics(taskMetrics))
	s.background = append(s.background, Background{Name: "event_ingestor", Run: s.ingestor.Run})

	state, err := appstate.NewState(appstate.NewBaseDeps(cfg, tasks, broadcaster, events, streamMetrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create app state: %w", err)
	}
	state.RegisterHealthCheck("database", store.HealthCheck)
	state.RegisterHealthCheck("broker", func(context.Context) error {
		if !s.broker.Ready() {
			return errBrokerNotConnected
		}
		return nil
	})
	if s.redis != nil {
		state.RegisterHealthCheck("redis", s.redis.HealthCheck)
	}
	log.Info("Dependencies initialized",
		"store_driver", "postgres",
		"stream_driver", s.streamDriver,
		"settings_cache_ttl", cfg.Settings.CacheTTL)
	return state, nil
}
