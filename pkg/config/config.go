package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the platform configuration
type Config struct {
	DatabasePath   string          `yaml:"database_path"`   // Path to the SQLite database
	ReportsDir     string          `yaml:"reports_dir"`     // Directory for generated reports
	AssetInventory string          `yaml:"asset_inventory"` // Path to the asset inventory YAML
	Threads        int             `yaml:"threads"`         // Concurrent scoring workers
	TopRisksLimit  int             `yaml:"top_risks_limit"` // Entries in top-risk listings
	Verbose        bool            `yaml:"verbose"`         // Enable debug logging
	Logging        LoggingConfig   `yaml:"logging"`
	Dashboard      DashboardConfig `yaml:"dashboard"`
	Feeds          FeedsConfig     `yaml:"feeds"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // Log file path, empty for stdout only
}

// DashboardConfig controls the web dashboard
type DashboardConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// FeedsConfig holds threat intelligence feed endpoints
type FeedsConfig struct {
	KEVURL         string `yaml:"kev_url"`
	EPSSURL        string `yaml:"epss_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() Config {
	return Config{
		DatabasePath:   "data/prism.db",
		ReportsDir:     "reports",
		AssetInventory: "config/assets.yaml",
		Threads:        10,
		TopRisksLimit:  10,
		Logging: LoggingConfig{
			Level: "info",
			File:  "logs/prism.log",
		},
		Dashboard: DashboardConfig{
			Host: "0.0.0.0",
			Port: "8080",
		},
		Feeds: FeedsConfig{
			KEVURL:         "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json",
			EPSSURL:        "https://api.first.org/data/v1/epss",
			TimeoutSeconds: 30,
		},
	}
}

// LoadFromFile loads configuration from a YAML file. A missing file is
// not an error: defaults are written to the path and returned.
func LoadFromFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if writeErr := WriteToFile(cfg, path); writeErr != nil {
			return cfg, fmt.Errorf("writing default config: %w", writeErr)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteToFile serializes the configuration as YAML, creating parent
// directories as needed
func WriteToFile(cfg Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
