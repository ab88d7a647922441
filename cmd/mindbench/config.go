package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the mindbench configuration file
// (~/.config/mindbench/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	DatasetsDir string `yaml:"datasets_dir"`
	ModelsDir   string `yaml:"models_dir"`

	Backend string `yaml:"backend"`
	Profile string `yaml:"profile"`

	BatchSize       *int64 `yaml:"batch_size"`
	CleanupInterval *int64 `yaml:"cleanup_interval"`
	Seed            *int64 `yaml:"seed"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mindbench", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or cannot be parsed.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyEvalConfig applies config file defaults to eval command variables
// when the corresponding CLI flag was not explicitly set.
func applyEvalConfig(c *cli.Command, cfg Config, batchSize, cleanupInterval, seed *int64) {
	if cfg.Backend != "" && !c.IsSet("backend") {
		backendName = cfg.Backend
	}
	if cfg.Profile != "" && !c.IsSet("profile") {
		profileName = cfg.Profile
	}
	if cfg.BatchSize != nil && !c.IsSet("batch-size") {
		*batchSize = *cfg.BatchSize
	}
	if cfg.CleanupInterval != nil && !c.IsSet("cleanup-interval") {
		*cleanupInterval = *cfg.CleanupInterval
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}
