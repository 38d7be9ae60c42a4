// Package config loads runtime configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/letsbefriends/platform/pkg/logger"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Uploads   UploadsConfig
	Payments  PaymentsConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig

	AuditLogPath string `env:"AUDIT_LOG_PATH"`
	PlansFile    string `env:"PLANS_FILE,default=config/plans.yaml"`
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST,default=0.0.0.0"`
	Port            int           `env:"SERVER_PORT,default=8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=20s"`
	// CORSOrigins is a comma separated allow list; "*" allows any origin.
	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	// RealtimeBuffer is how many pushes queue per websocket before drops.
	RealtimeBuffer int `env:"REALTIME_BUFFER,default=32"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AllowedOrigins splits CORSOrigins.
func (s ServerConfig) AllowedOrigins() []string {
	return splitList(s.CORSOrigins)
}

type DatabaseConfig struct {
	Driver          string        `env:"DATABASE_DRIVER,default=postgres"`
	DSN             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m"`
	MigrateOnStart  bool          `env:"DATABASE_MIGRATE_ON_START,default=true"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,default=0"`
	CacheTTL time.Duration `env:"NEARBY_CACHE_TTL,default=30s"`
}

type AuthConfig struct {
	// HMACSecret verifies HS256 tokens.
	HMACSecret string `env:"AUTH_JWT_SECRET"`
	// PublicKeyPEM verifies RS256 tokens; takes precedence over HMACSecret.
	PublicKeyPEM string `env:"AUTH_JWT_PUBLIC_KEY"`
	Issuer       string `env:"AUTH_JWT_ISSUER"`
	Audience     string `env:"AUTH_JWT_AUDIENCE"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS,default=20"`
	Burst             int     `env:"RATE_LIMIT_BURST,default=40"`
}

type UploadsConfig struct {
	BaseURL  string        `env:"UPLOADS_BASE_URL,default=http://localhost:8080/files"`
	Secret   string        `env:"UPLOADS_SIGNING_SECRET"`
	TTL      time.Duration `env:"UPLOADS_URL_TTL,default=15m"`
	MaxBytes int64         `env:"UPLOADS_MAX_BYTES,default=10485760"`
}

type PaymentsConfig struct {
	ProviderURL   string `env:"PAYMENTS_PROVIDER_URL"`
	APIKey        string `env:"PAYMENTS_API_KEY"`
	WebhookSecret string `env:"PAYMENTS_WEBHOOK_SECRET"`
	Currency      string `env:"PAYMENTS_CURRENCY,default=PHP"`
	// JSONPath expressions locating fields in provider webhook payloads.
	EventPath     string `env:"PAYMENTS_WEBHOOK_EVENT_PATH,default=$.type"`
	ReferencePath string `env:"PAYMENTS_WEBHOOK_REFERENCE_PATH,default=$.data.reference"`
	StatusPath    string `env:"PAYMENTS_WEBHOOK_STATUS_PATH,default=$.data.status"`
}

type SchedulerConfig struct {
	BookingSweepSpec string `env:"BOOKING_SWEEP_SCHEDULE,default=@every 15m"`
}

type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=letsbefriends"`
}

// Logger converts the section into the logger package config.
func (l LoggingConfig) Logger() logger.LoggingConfig {
	return logger.LoggingConfig{Level: l.Level, Format: l.Format, Output: l.Output, FilePrefix: l.FilePrefix}
}

// Load reads .env (if any) and decodes the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the process environment without touching .env files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads max bytes must be positive")
	}
	if c.Payments.ProviderURL != "" && c.Payments.WebhookSecret == "" {
		return fmt.Errorf("PAYMENTS_WEBHOOK_SECRET is required when a payment provider is configured")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
