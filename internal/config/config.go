// Package config loads application settings from environment variables.
// Every setting has a default except the database URL, and the whole
// configuration is validated on startup so misconfiguration fails fast.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Rate     RateLimitConfig `envconfig:"RATE_LIMIT"`
	Logging  LoggingConfig   `envconfig:"LOG"`
	Import   ImportConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to.
	Host string `default:"0.0.0.0"`

	Port int `default:"8080"`

	ReadTimeout  time.Duration `split_words:"true" default:"30s"`
	WriteTimeout time.Duration `split_words:"true" default:"120s"`
	IdleTimeout  time.Duration `split_words:"true" default:"60s"`

	// ShutdownTimeout bounds the graceful shutdown, including the wait for
	// running imports to drain.
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`

	// RequestTimeout is the middleware deadline for a single request.
	RequestTimeout time.Duration `split_words:"true" default:"90s"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP and X-Forwarded-For
	// headers are honored (comma-separated).
	TrustedProxies []string `split_words:"true"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (DATABASE_URL).
	URL string `required:"true"`

	MaxConns        int           `split_words:"true" default:"10"`
	MinConns        int           `split_words:"true" default:"2"`
	MaxConnLifetime time.Duration `split_words:"true" default:"1h"`
	MaxConnIdleTime time.Duration `split_words:"true" default:"30m"`

	// AutoMigrate applies the embedded schema on startup.
	AutoMigrate bool `split_words:"true" default:"false"`
}

// UploadConfig holds workbook upload limits.
type UploadConfig struct {
	// MaxFileSize is the largest accepted workbook, in bytes (default: 50MB).
	MaxFileSize int64 `split_words:"true" default:"52428800"`

	// MaxConcurrent is how many batches may be processed at once.
	MaxConcurrent int `split_words:"true" default:"4"`

	// MaxWait is how long a batch waits for a processing slot.
	MaxWait time.Duration `split_words:"true" default:"30s"`
}

// RateLimitConfig holds per-IP limits for the import endpoints.
type RateLimitConfig struct {
	Enabled          bool `default:"true"`
	UploadsPerMinute int  `split_words:"true" default:"10"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `default:"info"`

	// Format is text or json.
	Format string `default:"text"`
}

// ImportConfig holds import pipeline settings.
type ImportConfig struct {
	// LayoutFile is an optional YAML file overriding the column layout.
	LayoutFile string `split_words:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
