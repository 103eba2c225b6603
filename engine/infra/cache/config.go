package cache

import (
	"time"

	"github.com/dallosh/analysis/pkg/config"
)

type Config struct {
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
}

// ConfigFrom maps the application Redis settings onto the client config.
func ConfigFrom(cfg *config.RedisConfig) *Config {
	return &Config{
		URL:      cfg.URL,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password.Value(),
		DB:       cfg.DB,
	}
}
