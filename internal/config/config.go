// Package config defines the process configuration for the Ordercast
// engine. Configuration is loaded once at startup and immutable
// thereafter, following 12-Factor principles: OS environment wins over a
// local .env file, and any missing required value fails startup
// immediately.
package config

import (
	"time"

	"ordercast/internal/types"
)

// SecretString aliases types.SecretString, the redacted secret type used
// in configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive
// only the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"ordercast-engine"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Backfill BackfillConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
// DeliveryQueueURL is optional: when empty the engine wakes the worker
// over HTTP instead of SQS.
type AWSConfig struct {
	Region           string `envconfig:"AWS_REGION" default:"us-east-1"`
	DeliveryQueueURL string `envconfig:"SQS_DELIVERY_WAKEUP" validate:"omitempty,url"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// RedisConfig holds the optional dedupe-cache connection. An empty Addr
// disables the cache entirely; the ledger alone remains correct.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password SecretString  `envconfig:"REDIS_PASSWORD"`
	ClaimTTL time.Duration `envconfig:"REDIS_CLAIM_TTL" default:"10m"`
}

// WorkerConfig holds the HTTP wake-up fallback for the delivery worker.
type WorkerConfig struct {
	WakeURL string        `envconfig:"WORKER_WAKE_URL" validate:"omitempty,url"`
	Timeout time.Duration `envconfig:"WORKER_TIMEOUT" default:"10s"`
}

// BackfillConfig tunes the in-process backfill poller.
type BackfillConfig struct {
	BatchLimit int           `envconfig:"BACKFILL_BATCH_LIMIT" default:"100"`
	Interval   time.Duration `envconfig:"BACKFILL_INTERVAL" default:"30s"`
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
