package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted when no config
// path is passed on the command line.
const EnvConfigPath = "ENROLL_CONFIG"

// Load builds the configuration with Read and validates it.
func Load(path string) (*Config, error) {
	config, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Read builds the configuration without validating it: defaults first, then
// the YAML file at path (if any), then ENROLL_* environment variables.
func Read(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	config := Default()
	if path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	// Only variables that are present override the file
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return config, nil
}

// loadFile decodes a YAML file over config
func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
