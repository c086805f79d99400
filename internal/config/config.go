// Package config loads process-level defaults for a wsengine client from
// the environment, mirroring the teacher's root config.go: optional .env
// file via joho/godotenv, struct parsing via caarlos0/env/v11, then
// Validate and LogConfig.
//
// Everything here is a *default* a caller's internal/session.SessionConfig
// can start from — a caller is always free to build a SessionConfig by
// hand instead. This package exists for the common case of a CLI or
// service that wants its WS endpoint, timeouts, and log settings sourced
// from the environment the way the rest of the corpus does it.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the environment-sourced defaults for a wsengine client
// process.
//
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	// Connection
	URL            string        `env:"WSENGINE_URL,required"`
	ConnectTimeout time.Duration `env:"WSENGINE_CONNECT_TIMEOUT" envDefault:"10s"`
	RetryCount     int           `env:"WSENGINE_RETRY_COUNT" envDefault:"5"`
	RetryDelayBase time.Duration `env:"WSENGINE_RETRY_DELAY_BASE" envDefault:"500ms"`

	// Requests
	RequestTimeout time.Duration `env:"WSENGINE_REQUEST_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateCapacity       float64       `env:"WSENGINE_RATE_CAPACITY" envDefault:"20"`
	RateRefill         float64       `env:"WSENGINE_RATE_REFILL" envDefault:"10"`
	RateRefillInterval time.Duration `env:"WSENGINE_RATE_REFILL_INTERVAL" envDefault:"1s"`
	RateQueueMax       int           `env:"WSENGINE_RATE_QUEUE_MAX" envDefault:"100"`

	// Heartbeat
	HeartbeatKind     string        `env:"WSENGINE_HEARTBEAT_KIND" envDefault:"ping_pong"`
	HeartbeatInterval time.Duration `env:"WSENGINE_HEARTBEAT_INTERVAL" envDefault:"30s"`

	// Reconnection ownership (§4.5/§4.6): exactly one of engine-internal
	// or Supervisor-level reconnect is active.
	ReconnectOnError bool `env:"WSENGINE_RECONNECT_ON_ERROR" envDefault:"false"`

	// Logging
	LogLevel  string `env:"WSENGINE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"WSENGINE_LOG_FORMAT" envDefault:"json"`

	// Environment
	Environment string `env:"WSENGINE_ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from a .env file (if present) and the
// environment. Priority: ENV vars > .env file > defaults. Optional logger
// for structured diagnostics; if nil, falls back to fmt.Println like the
// teacher's LoadConfig.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		} else {
			fmt.Println("info: no .env file found, using environment variables only")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for internally-inconsistent or
// out-of-range values caarlos0/env/v11 can't enforce on its own.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("WSENGINE_URL is required")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("WSENGINE_RETRY_COUNT must be >= 0, got %d", c.RetryCount)
	}
	if c.RateCapacity < 0 {
		return fmt.Errorf("WSENGINE_RATE_CAPACITY must be >= 0, got %f", c.RateCapacity)
	}
	if c.RateQueueMax < 0 {
		return fmt.Errorf("WSENGINE_RATE_QUEUE_MAX must be >= 0, got %d", c.RateQueueMax)
	}

	validHeartbeats := map[string]bool{"none": true, "ping_pong": true, "platform_test_request": true}
	if !validHeartbeats[c.HeartbeatKind] {
		return fmt.Errorf("WSENGINE_HEARTBEAT_KIND must be one of: none, ping_pong, platform_test_request (got: %s)", c.HeartbeatKind)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("WSENGINE_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("WSENGINE_LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}

	return nil
}

// LogConfig emits the loaded configuration as one structured log line.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("url", c.URL).
		Dur("connect_timeout", c.ConnectTimeout).
		Int("retry_count", c.RetryCount).
		Dur("retry_delay_base", c.RetryDelayBase).
		Dur("request_timeout", c.RequestTimeout).
		Float64("rate_capacity", c.RateCapacity).
		Float64("rate_refill", c.RateRefill).
		Dur("rate_refill_interval", c.RateRefillInterval).
		Int("rate_queue_max", c.RateQueueMax).
		Str("heartbeat_kind", c.HeartbeatKind).
		Dur("heartbeat_interval", c.HeartbeatInterval).
		Bool("reconnect_on_error", c.ReconnectOnError).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("wsengine configuration loaded")
}
