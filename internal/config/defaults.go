package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRoomCapacity    = 1000
	DefaultMaxLineSize     = 64 * 1024
	DefaultRefillInterval  = time.Second
	DefaultMaxMessageSize  = 64 * 1024
	DefaultAllowedOrigin   = "http://localhost:8080"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Default returns a configuration with every optional field defaulted.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Rooms.Capacity == 0 {
		c.Rooms.Capacity = DefaultRoomCapacity
	}

	if c.Session.MaxLineSize == 0 {
		c.Session.MaxLineSize = DefaultMaxLineSize
	}
	if c.Session.RateLimit.RefillInterval == 0 {
		c.Session.RateLimit.RefillInterval = DefaultRefillInterval
	}

	if len(c.Gateway.AllowedOrigins) == 0 {
		c.Gateway.AllowedOrigins = []string{DefaultAllowedOrigin}
	}
	if c.Gateway.MaxMessageSize == 0 {
		c.Gateway.MaxMessageSize = DefaultMaxMessageSize
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
