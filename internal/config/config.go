// Package config loads the service configuration from environment variables.
// Defaults are applied for unset values and every setting is validated on
// startup so a misconfigured deployment fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Delivery DeliveryConfig
	Outbound OutboundConfig
	Flatten  FlattenConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for
	// in-flight deliveries (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`

	// MaxBodyBytes caps submission and API request bodies (default: 1MiB)
	MaxBodyBytes int64 `env:"SERVER_MAX_BODY_BYTES" default:"1048576"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. When empty the server keeps
	// its data in memory.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// DeliveryConfig holds delivery queue settings.
type DeliveryConfig struct {
	// Workers is the maximum number of concurrent deliveries (default: 4)
	Workers int `env:"DELIVERY_WORKERS" default:"4"`

	// MaxWaitTime is how long a delivery waits for a worker slot (default: 30s)
	MaxWaitTime time.Duration `env:"DELIVERY_MAX_WAIT_TIME" default:"30s"`

	PollInterval time.Duration `env:"DELIVERY_POLL_INTERVAL" default:"5s"`
	BatchSize    int           `env:"DELIVERY_BATCH_SIZE" default:"10"`
	MaxAttempts  int           `env:"DELIVERY_MAX_ATTEMPTS" default:"5"`
	SendTimeout  time.Duration `env:"DELIVERY_SEND_TIMEOUT" default:"60s"`

	// Retention is how long delivered and failed deliveries are kept
	// (default: 720h, 0 keeps them forever)
	Retention     time.Duration `env:"DELIVERY_RETENTION" default:"720h"`
	PurgeInterval time.Duration `env:"DELIVERY_PURGE_INTERVAL" default:"1h"`

	// Verbose logs connector events (fetched tables, field maps, writes)
	// at debug level.
	Verbose bool `env:"DELIVERY_VERBOSE" default:"false"`
}

// OutboundConfig holds settings for requests to connector services.
type OutboundConfig struct {
	Timeout   time.Duration `env:"OUTBOUND_TIMEOUT" default:"30s"`
	RateLimit float64       `env:"OUTBOUND_RATE_LIMIT" default:"10"`
	RateBurst int           `env:"OUTBOUND_RATE_BURST" default:"5"`
	UserAgent string        `env:"OUTBOUND_USER_AGENT" default:"contact-form-connect/1.0"`

	// SheetsBaseURL overrides the Google Sheets API endpoint for connectors
	// that do not set their own.
	SheetsBaseURL string `env:"SHEETS_BASE_URL"`
}

// FlattenConfig controls how submissions become rows.
type FlattenConfig struct {
	// Separator joins nested keys into one heading (default: " -- ")
	Separator string `env:"FLATTEN_SEPARATOR" default:" -- "`

	// SkipKeys are dropped at every depth (default: uuid,langcode,contact_form,copy)
	SkipKeys []string `env:"FLATTEN_SKIP_KEYS" default:"uuid,langcode,contact_form,copy"`
}

// RateLimitConfig holds API rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the limit per client IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// SubmissionsPerMinute is the limit per client IP for form submissions (default: 20)
	SubmissionsPerMinute int `env:"RATE_LIMIT_SUBMISSIONS" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey protects the management API with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// UsesDatabase reports whether a PostgreSQL URL is configured.
func (c *DatabaseConfig) UsesDatabase() bool {
	return c.URL != ""
}
