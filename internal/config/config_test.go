package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRelay(t *testing.T) {
	yaml := `
server:
  host: 127.0.0.1
  port: 4000
relay:
  heartbeat_timeout: 20s
metrics:
  port: 9191
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadRelay(path)
	if err != nil {
		t.Fatalf("LoadRelay failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Relay.HeartbeatTimeout != 20*time.Second {
		t.Errorf("Relay.HeartbeatTimeout = %v, want 20s", cfg.Relay.HeartbeatTimeout)
	}
	if cfg.Metrics.Port != 9191 {
		t.Errorf("Metrics.Port = %d, want 9191", cfg.Metrics.Port)
	}
}

func TestLoadRelayWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_RELAY_HOST", "10.0.0.5")

	yaml := `
server:
  host: ${TEST_RELAY_HOST}
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadRelay(path)
	if err != nil {
		t.Fatalf("LoadRelay failed: %v", err)
	}

	if cfg.Server.Host != "10.0.0.5" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "10.0.0.5")
	}
}

func TestLoadRelayWithDefaults(t *testing.T) {
	path := writeTempFile(t, "server:\n  host: 127.0.0.1\n")

	cfg, err := LoadRelayWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadRelayWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Relay.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("Relay.HeartbeatInterval = %v, want default %v", cfg.Relay.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Relay.HeartbeatTimeout != DefaultHeartbeatTimeout {
		t.Errorf("Relay.HeartbeatTimeout = %v, want default %v", cfg.Relay.HeartbeatTimeout, DefaultHeartbeatTimeout)
	}
	if cfg.Relay.RegistrationTimeout != DefaultRegistrationTimeout {
		t.Errorf("Relay.RegistrationTimeout = %v, want default %v", cfg.Relay.RegistrationTimeout, DefaultRegistrationTimeout)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestRelayValidate(t *testing.T) {
	valid := func() RelayConfig {
		var cfg RelayConfig
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*RelayConfig)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *RelayConfig) {},
			wantErr: "",
		},
		{
			name:    "bad port",
			mutate:  func(c *RelayConfig) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535, got 70000",
		},
		{
			name: "timeout below interval",
			mutate: func(c *RelayConfig) {
				c.Relay.HeartbeatInterval = 10 * time.Second
				c.Relay.HeartbeatTimeout = 5 * time.Second
			},
			wantErr: "relay.heartbeat_timeout (5s) must exceed heartbeat_interval (10s)",
		},
		{
			name:    "zero registration timeout",
			mutate:  func(c *RelayConfig) { c.Relay.RegistrationTimeout = -time.Second },
			wantErr: "relay.registration_timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestLoadAgentAndValidate(t *testing.T) {
	yaml := `
relay:
  url: ws://relay.internal:3000/ws
display_name: build-box
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAgentAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAgentAndValidate failed: %v", err)
	}

	if cfg.DisplayName != "build-box" {
		t.Errorf("DisplayName = %q, want %q", cfg.DisplayName, "build-box")
	}
	if cfg.Capture.FullInterval != DefaultFullInterval {
		t.Errorf("Capture.FullInterval = %v, want default %v", cfg.Capture.FullInterval, DefaultFullInterval)
	}
	if cfg.Capture.JPEGQuality != DefaultJPEGQuality {
		t.Errorf("Capture.JPEGQuality = %d, want default %d", cfg.Capture.JPEGQuality, DefaultJPEGQuality)
	}
}

func TestAgentValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AgentConfig
		wantErr string
	}{
		{
			name:    "missing url",
			cfg:     AgentConfig{},
			wantErr: "relay.url is required",
		},
		{
			name: "non-websocket url",
			cfg: AgentConfig{
				Relay: RelayEndpoint{URL: "http://relay:3000"},
			},
			wantErr: `relay.url must be a ws:// or wss:// URL, got "http://relay:3000"`,
		},
		{
			name: "missing display name",
			cfg: AgentConfig{
				Relay: RelayEndpoint{URL: "ws://relay:3000/ws"},
			},
			wantErr: "display_name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() expected error %q, got nil", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
