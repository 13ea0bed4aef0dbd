package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Relay   RelaySettings `yaml:"relay"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds the WebSocket listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	SendBufferSize  int           `yaml:"send_buffer_size"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
}

// RelaySettings holds session lifecycle timing.
type RelaySettings struct {
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout    time.Duration `yaml:"heartbeat_timeout"`
	RegistrationTimeout time.Duration `yaml:"registration_timeout"`
}

// MetricsConfig holds the HTTP health/stats endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// AgentConfig is the root configuration for a capture agent.
type AgentConfig struct {
	Relay       RelayEndpoint `yaml:"relay"`
	DisplayName string        `yaml:"display_name"`
	Capture     CaptureConfig `yaml:"capture"`
}

// RelayEndpoint describes how the agent reaches the relay.
type RelayEndpoint struct {
	URL                string        `yaml:"url"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
}

// CaptureConfig holds frame cadence and encoding settings.
type CaptureConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	FullInterval      time.Duration `yaml:"full_interval"`
	PreviewInterval   time.Duration `yaml:"preview_interval"`
	JPEGQuality       int           `yaml:"jpeg_quality"`
	Monitor           int           `yaml:"monitor"`
}
