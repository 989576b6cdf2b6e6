package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if err := validateAddr("server.addr", c.Server.Addr); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must be >= 0")
	}

	if c.Rooms.Capacity < 1 {
		return errors.New("rooms.capacity must be >= 1")
	}

	if c.Session.MaxLineSize < 64 {
		return fmt.Errorf("session.max_line_size must be >= 64, got %d", c.Session.MaxLineSize)
	}
	if c.Session.WriteTimeout < 0 {
		return errors.New("session.write_timeout must be >= 0")
	}
	if c.Session.RateLimit.Burst < 0 {
		return errors.New("session.rate_limit.burst must be >= 0")
	}
	if c.Session.RateLimit.RefillInterval <= 0 {
		return errors.New("session.rate_limit.refill_interval must be > 0")
	}

	if c.Gateway.Addr != "" {
		if err := validateAddr("gateway.addr", c.Gateway.Addr); err != nil {
			return err
		}
		if c.Gateway.MaxMessageSize < 1 {
			return errors.New("gateway.max_message_size must be >= 1")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func validateAddr(field, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s must be host:port, got %q: %w", field, addr, err)
	}
	return nil
}
