// Package config loads the service configuration from environment variables.
// Every field carries its variable name and default in struct tags; Load
// fills them in and Validate reports all problems at once so a bad deploy
// fails on startup with the full list.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Upload    UploadConfig
	Standards StandardsConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout must cover a whole run plus report rendering.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout applies to read-only routes; run routes use UPLOAD_TIMEOUT.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects where run summaries are kept.
type StoreConfig struct {
	// Backend is memory, postgres or redis.
	Backend string `env:"STORE_BACKEND" default:"memory"`
}

// DatabaseConfig holds PostgreSQL settings, used when STORE_BACKEND=postgres.
type DatabaseConfig struct {
	// URL accepts DATABASE_URL or DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int32         `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RedisConfig holds Redis settings, used when STORE_BACKEND=redis.
type RedisConfig struct {
	URL       string `env:"REDIS_URL"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" default:"sdtm:"`

	// TTL expires stored runs; 0 keeps them.
	TTL time.Duration `env:"REDIS_TTL" default:"0s"`
}

// UploadConfig bounds dataset uploads and run execution.
type UploadConfig struct {
	// MaxFileSize is per file, in bytes (default 50MB).
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	MaxFiles      int           `env:"UPLOAD_MAX_FILES" default:"50"`
	MaxConcurrent int           `env:"UPLOAD_MAX_CONCURRENT" default:"5"`
	MaxWaitTime   time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout wraps one whole run: parsing, rules and persistence.
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// StandardsConfig controls which standard definitions are available.
type StandardsConfig struct {
	// Dir holds extra <id>.yaml, <id>.yml or <id>.xlsx definitions.
	Dir string `env:"STANDARDS_DIR"`

	Default string `env:"STANDARDS_DEFAULT" default:"sdtmig-v4-3"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// RunLimit applies to the run and check endpoints.
	RunLimit int `env:"RATE_LIMIT_RUNS" default:"10"`
}

// SecurityConfig holds proxy trust and header settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of CIDRs.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
