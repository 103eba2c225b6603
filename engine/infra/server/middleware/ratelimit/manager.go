package ratelimit

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/dallosh/analysis/engine/infra/server/router"
	"github.com/dallosh/analysis/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const (
	keyTypeIP    = "ip"
	globalRouteK = "*"
)

type routeLimiter struct {
	prefix  string
	handler gin.HandlerFunc
}

// Manager enforces per-client request budgets. Counters live in Redis when a
// client is given so that every instance shares them; otherwise in memory.
type Manager struct {
	config   *Config
	store    limiter.Store
	global   gin.HandlerFunc
	routes   []routeLimiter
	excluded []string
}

// NewManager builds the limiters described by cfg.
func NewManager(cfg *Config, client redis.UniversalClient) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := limiter.StoreOptions{
		Prefix:          cfg.Prefix,
		MaxRetry:        cfg.MaxRetry,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	}
	var store limiter.Store
	if client != nil {
		var err error
		store, err = redisstore.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}
	m := &Manager{config: cfg, store: store, excluded: cfg.ExcludedPaths}
	if !cfg.GlobalRate.Disabled {
		m.global = m.handlerFor(globalRouteK, cfg.GlobalRate)
	}
	for prefix, rate := range cfg.RouteRates {
		if rate.Disabled {
			continue
		}
		m.routes = append(m.routes, routeLimiter{prefix: prefix, handler: m.handlerFor(prefix, rate)})
	}
	// longest prefix wins
	sort.Slice(m.routes, func(i, j int) bool {
		return len(m.routes[i].prefix) > len(m.routes[j].prefix)
	})
	return m, nil
}

func (m *Manager) handlerFor(route string, rate RateConfig) gin.HandlerFunc {
	lim := limiter.New(m.store, rate.ToLimiterRate())
	return ginlimiter.NewMiddleware(
		lim,
		ginlimiter.WithKeyGetter(func(c *gin.Context) string {
			return route + ":" + c.ClientIP()
		}),
		ginlimiter.WithLimitReachedHandler(func(c *gin.Context) {
			IncrementBlockedRequests(c.Request.Context(), route, keyTypeIP)
			router.RespondProblemWithCode(
				c,
				http.StatusTooManyRequests,
				router.ErrTooManyRequestsCode,
				"rate limit exceeded",
			)
		}),
		ginlimiter.WithErrorHandler(func(c *gin.Context, err error) {
			logger.FromContext(c.Request.Context()).Error("Rate limiter failed", "route", route, "error", err)
			router.RespondProblemWithCode(
				c,
				http.StatusInternalServerError,
				router.ErrInternalCode,
				"rate limiter unavailable",
			)
		}),
	)
}

// Middleware returns the rate limiting middleware.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if m.isExcluded(path) {
			c.Next()
			return
		}
		for _, r := range m.routes {
			if strings.HasPrefix(path, r.prefix) {
				r.handler(c)
				return
			}
		}
		if m.global == nil {
			c.Next()
			return
		}
		m.global(c)
	}
}

func (m *Manager) isExcluded(path string) bool {
	for _, p := range m.excluded {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}
