// Package config loads the writer daemon configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon's settings.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listen_addr"`
	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path"`
	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr: "127.0.0.1:8787",
		DBPath:     "writer.db",
	}
}

// Load reads a YAML config file, filling unset fields with defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = Default().ListenAddr
	}
	if cfg.DBPath == "" {
		cfg.DBPath = Default().DBPath
	}
	return cfg, nil
}
