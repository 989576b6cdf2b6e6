package config

import "time"

// Config is the root configuration for a chat server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Rooms   RoomsConfig   `yaml:"rooms"`
	Session SessionConfig `yaml:"session"`
	Gateway GatewayConfig `yaml:"gateway"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds the TCP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"` // host:port, overridden by the CLI argument
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RoomsConfig holds room feed settings.
type RoomsConfig struct {
	Capacity int `yaml:"capacity"` // entries retained per room for slow subscribers
}

// SessionConfig holds per-connection settings.
type SessionConfig struct {
	MaxLineSize  int             `yaml:"max_line_size"`
	WriteTimeout time.Duration   `yaml:"write_timeout"` // 0 waits forever
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines per-session command rate limiting. Burst 0 disables it.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// GatewayConfig holds the optional HTTP/WebSocket gateway settings.
type GatewayConfig struct {
	Addr           string   `yaml:"addr"` // empty disables the gateway
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxMessageSize int64    `yaml:"max_message_size"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
