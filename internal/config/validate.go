package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *RelayConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.SendBufferSize < 1 {
		return errors.New("server.send_buffer_size must be >= 1")
	}

	if c.Relay.HeartbeatInterval <= 0 {
		return errors.New("relay.heartbeat_interval must be positive")
	}
	if c.Relay.HeartbeatTimeout <= 0 {
		return errors.New("relay.heartbeat_timeout must be positive")
	}
	if c.Relay.HeartbeatTimeout <= c.Relay.HeartbeatInterval {
		return fmt.Errorf("relay.heartbeat_timeout (%s) must exceed heartbeat_interval (%s)",
			c.Relay.HeartbeatTimeout, c.Relay.HeartbeatInterval)
	}
	if c.Relay.RegistrationTimeout <= 0 {
		return errors.New("relay.registration_timeout must be positive")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

// Validate checks that all required fields are set and values are valid.
func (c *AgentConfig) Validate() error {
	if c.Relay.URL == "" {
		return errors.New("relay.url is required")
	}
	if !strings.HasPrefix(c.Relay.URL, "ws://") && !strings.HasPrefix(c.Relay.URL, "wss://") {
		return fmt.Errorf("relay.url must be a ws:// or wss:// URL, got %q", c.Relay.URL)
	}
	if c.DisplayName == "" {
		return errors.New("display_name is required")
	}

	if c.Capture.FullInterval <= 0 {
		return errors.New("capture.full_interval must be positive")
	}
	if c.Capture.PreviewInterval <= 0 {
		return errors.New("capture.preview_interval must be positive")
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality must be between 1 and 100, got %d", c.Capture.JPEGQuality)
	}
	if c.Capture.Monitor < 0 {
		return errors.New("capture.monitor must be >= 0")
	}

	return nil
}
