package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 3000
	DefaultSendBufferSize  = 64
	DefaultWriteTimeout    = 5 * time.Second
	DefaultMaxMessageBytes = 16 << 20

	DefaultHeartbeatInterval   = 5 * time.Second
	DefaultHeartbeatTimeout    = 15 * time.Second
	DefaultRegistrationTimeout = 10 * time.Second

	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/stats"

	DefaultRelayURL           = "ws://localhost:3000/ws"
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second

	DefaultFullInterval    = 300 * time.Millisecond
	DefaultPreviewInterval = 5 * time.Second
	DefaultJPEGQuality     = 25
)

func (c *RelayConfig) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.SendBufferSize == 0 {
		c.Server.SendBufferSize = DefaultSendBufferSize
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.MaxMessageBytes == 0 {
		c.Server.MaxMessageBytes = DefaultMaxMessageBytes
	}

	if c.Relay.HeartbeatInterval == 0 {
		c.Relay.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Relay.HeartbeatTimeout == 0 {
		c.Relay.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.Relay.RegistrationTimeout == 0 {
		c.Relay.RegistrationTimeout = DefaultRegistrationTimeout
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func (c *AgentConfig) applyDefaults() {
	if c.Relay.URL == "" {
		c.Relay.URL = DefaultRelayURL
	}
	if c.Relay.ReconnectBaseDelay == 0 {
		c.Relay.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Relay.ReconnectMaxDelay == 0 {
		c.Relay.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Relay.WriteTimeout == 0 {
		c.Relay.WriteTimeout = DefaultWriteTimeout
	}

	if c.Capture.HeartbeatInterval == 0 {
		c.Capture.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Capture.FullInterval == 0 {
		c.Capture.FullInterval = DefaultFullInterval
	}
	if c.Capture.PreviewInterval == 0 {
		c.Capture.PreviewInterval = DefaultPreviewInterval
	}
	if c.Capture.JPEGQuality == 0 {
		c.Capture.JPEGQuality = DefaultJPEGQuality
	}
}
