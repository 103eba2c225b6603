package postgres

import (
	"time"

	"github.com/dallosh/analysis/pkg/config"
)

// Config holds PostgreSQL connection settings for the driver.
type Config struct {
	DSN             string
	Host            string
	Port            string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// ConfigFrom maps the application database settings onto the driver config.
func ConfigFrom(db *config.DatabaseConfig) *Config {
	return &Config{
		DSN:     db.DSN(),
		Host:    db.Host,
		Port:    db.Port,
		DBName:  db.DBName,
		SSLMode: db.SSLMode,
	}
}
