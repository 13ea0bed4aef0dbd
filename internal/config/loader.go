package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRelay reads a YAML relay config file and expands environment variables.
func LoadRelay(path string) (*RelayConfig, error) {
	var cfg RelayConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRelayWithDefaults loads relay config and applies default values.
func LoadRelayWithDefaults(path string) (*RelayConfig, error) {
	cfg, err := LoadRelay(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadRelayAndValidate loads relay config, applies defaults, and validates.
func LoadRelayAndValidate(path string) (*RelayConfig, error) {
	cfg, err := LoadRelayWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadAgent reads a YAML agent config file and expands environment variables.
func LoadAgent(path string) (*AgentConfig, error) {
	var cfg AgentConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAgentWithDefaults loads agent config and applies default values.
func LoadAgentWithDefaults(path string) (*AgentConfig, error) {
	cfg, err := LoadAgent(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAgentAndValidate loads agent config, applies defaults, and validates.
func LoadAgentAndValidate(path string) (*AgentConfig, error) {
	cfg, err := LoadAgentWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}
