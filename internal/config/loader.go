package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CHAT_* environment variables. Values that
// fail to parse leave the current setting in place.
func (c *Config) ApplyEnv() {
	if addr := os.Getenv("CHAT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}

	if addr := os.Getenv("CHAT_GATEWAY_ADDR"); addr != "" {
		c.Gateway.Addr = addr
	}

	if origins := os.Getenv("CHAT_ALLOWED_ORIGINS"); origins != "" {
		c.Gateway.AllowedOrigins = parseOrigins(origins)
	}

	if capacity := os.Getenv("CHAT_ROOM_CAPACITY"); capacity != "" {
		c.Rooms.Capacity = parseIntValue(capacity, c.Rooms.Capacity)
	}

	if level := os.Getenv("CHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(strings.TrimSpace(level))
	}

	if burst := os.Getenv("CHAT_RATE_LIMIT_BURST"); burst != "" {
		c.Session.RateLimit.Burst = parseIntValue(burst, c.Session.RateLimit.Burst)
	}

	if interval := os.Getenv("CHAT_RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		c.Session.RateLimit.RefillInterval = parseRefillInterval(interval, c.Session.RateLimit.RefillInterval)
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseRefillInterval accepts a Go duration ("500ms") or whole seconds ("2").
func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
