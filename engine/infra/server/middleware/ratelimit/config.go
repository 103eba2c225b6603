package ratelimit

import (
	"fmt"
	"time"

	"github.com/dallosh/analysis/engine/infra/server/routes"
	"github.com/dallosh/analysis/pkg/config"
	"github.com/ulule/limiter/v3"
)

// Config represents rate limiting configuration
type Config struct {
	// GlobalRate applies per client to every route without an override.
	GlobalRate RateConfig `yaml:"global_rate"`

	// RouteRates overrides GlobalRate for route prefixes.
	RouteRates map[string]RateConfig `yaml:"route_rates"`

	Prefix   string `yaml:"prefix"`
	MaxRetry int    `yaml:"max_retry"`

	// ExcludedPaths are never limited.
	ExcludedPaths []string `yaml:"excluded_paths"`
}

// RateConfig represents a single rate limit configuration
type RateConfig struct {
	Period   time.Duration `yaml:"period"`
	Limit    int64         `yaml:"limit"`
	Disabled bool          `yaml:"disabled,omitempty"`
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		GlobalRate: RateConfig{
			Limit:  60,
			Period: 1 * time.Minute,
		},
		RouteRates: map[string]RateConfig{
			// destructive operations get a stricter budget
			routes.DeleteWithFiles(): {
				Limit:  20,
				Period: 1 * time.Minute,
			},
		},
		Prefix:   "dallosh:ratelimit:",
		MaxRetry: 3,
		ExcludedPaths: []string{
			"/health",                // legacy/unversioned
			"/metrics",               // Prometheus
			routes.HealthVersioned(), // versioned API health
		},
	}
}

// FromAppConfig derives the limiter settings from the service configuration.
func FromAppConfig(cfg config.RateLimitConfig) *Config {
	out := DefaultConfig()
	if cfg.Limit > 0 {
		out.GlobalRate.Limit = cfg.Limit
	}
	if cfg.Period > 0 {
		out.GlobalRate.Period = cfg.Period
	}
	out.GlobalRate.Disabled = !cfg.Enabled
	return out
}

// ToLimiterRate converts RateConfig to limiter.Rate
func (rc RateConfig) ToLimiterRate() limiter.Rate {
	return limiter.Rate{
		Period: rc.Period,
		Limit:  rc.Limit,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !c.GlobalRate.Disabled && (c.GlobalRate.Limit <= 0 || c.GlobalRate.Period <= 0) {
		return fmt.Errorf("global rate limit and period must be positive")
	}
	for route, rate := range c.RouteRates {
		if rate.Disabled {
			continue
		}
		if rate.Limit <= 0 || rate.Period <= 0 {
			return fmt.Errorf("route rate limit for %s must be positive", route)
		}
	}
	return nil
}
