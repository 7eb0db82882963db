// Package config loads the client-side configuration from a YAML file.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
}

type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	WSURL   string `yaml:"ws_url"`
}

type SessionConfig struct {
	File string `yaml:"file"`
}

func defaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://127.0.0.1:8080",
			WSURL:   "ws://127.0.0.1:8080/ws",
		},
		Session: SessionConfig{
			File: filepath.Join(home, ".campustransit", "session.json"),
		},
	}
}

// Load reads a YAML config file. Fields the file omits keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the file if it exists and falls back to defaults when
// it does not. Any other error is still reported.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return cfg, err
}
