package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds client-level configuration parameters.
type Config struct {
	// --- Identity ---
	WorldName string `yaml:"world_name"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`

	// --- Files ---
	WorldFile      string   `yaml:"world_file"`      // bbolt automation store
	StateDir       string   `yaml:"state_dir"`       // per-scope state documents
	LogFile        string   `yaml:"log_file"`        // session log, empty to disable
	ScrollbackFile string   `yaml:"scrollback_file"` // sqlite recall store
	Plugins        []string `yaml:"plugins"`         // plugin definition files

	// --- Scrollback ---
	ScrollbackLines int `yaml:"scrollback_lines"`

	// --- Metrics ---
	MetricsAddr string `yaml:"metrics_addr"` // empty disables the endpoint
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		WorldName:       "gotinyclient",
		Host:            "localhost",
		Port:            4000,
		WorldFile:       "world.db",
		StateDir:        "state",
		ScrollbackFile:  "scrollback.db",
		ScrollbackLines: 5000,
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
