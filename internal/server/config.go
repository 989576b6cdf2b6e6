// Package server provides configuration helpers that define runtime defaults
// and sanitization for sessions and the WebSocket gateway.
package server

import (
	"time"

	"github.com/Tyrowin/tcpchat/internal/config"
	"github.com/Tyrowin/tcpchat/internal/protocol"
)

// RateLimitConfig defines the parameters for per-session command rate limiting.
// A Burst of zero disables limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the runtime settings shared by every session the server runs.
type Config struct {
	MaxLineSize    int
	WriteTimeout   time.Duration
	RateLimit      RateLimitConfig
	AllowedOrigins []string
	MaxMessageSize int64
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxLineSize: protocol.DefaultMaxLineSize,
		RateLimit: RateLimitConfig{
			RefillInterval: time.Second,
		},
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 64 * 1024,
	}
}

// ConfigFrom maps the file/env configuration onto server settings.
func ConfigFrom(cfg *config.Config) Config {
	return sanitizeConfig(Config{
		MaxLineSize:  cfg.Session.MaxLineSize,
		WriteTimeout: cfg.Session.WriteTimeout,
		RateLimit: RateLimitConfig{
			Burst:          cfg.Session.RateLimit.Burst,
			RefillInterval: cfg.Session.RateLimit.RefillInterval,
		},
		AllowedOrigins: append([]string(nil), cfg.Gateway.AllowedOrigins...),
		MaxMessageSize: cfg.Gateway.MaxMessageSize,
	})
}

func sanitizeConfig(cfg Config) Config {
	defaults := DefaultConfig()

	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = defaults.MaxLineSize
	}

	if cfg.WriteTimeout < 0 {
		cfg.WriteTimeout = 0
	}

	if cfg.RateLimit.Burst < 0 {
		cfg.RateLimit.Burst = 0
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaults.RateLimit.RefillInterval
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	return cfg
}
