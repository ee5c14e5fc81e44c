// Package config loads the dashboard service configuration from an
// optional config.yaml and CHURN_-prefixed environment variables.
package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Backend   BackendConfig   `koanf:"backend"`
	Export    ExportConfig    `koanf:"export"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

// BackendConfig points at the external churn prediction API.
type BackendConfig struct {
	BaseURL string `koanf:"base_url"`
	Timeout string `koanf:"timeout"` // Duration string like "30s"
}

// TimeoutDuration parses the configured timeout, falling back to 30s.
func (b BackendConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(b.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

type ExportConfig struct {
	// Threshold is the default high-risk probability cutoff, used when
	// the backend summary does not provide one.
	Threshold float64 `koanf:"threshold"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load from config.yaml file first
	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("CHURN_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CHURN_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("backend.base_url") {
		k.Set("backend.base_url", "http://localhost:8000")
	}
	if !k.Exists("backend.timeout") {
		k.Set("backend.timeout", "30s")
	}
	if !k.Exists("export.threshold") {
		k.Set("export.threshold", 0.7)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "memory")
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "./data/dashboard.db")
	}
	if !k.Exists("telemetry.enabled") {
		k.Set("telemetry.enabled", true)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in the backend URL so deployments
	// can write base_url: ${CHURN_API_URL} in config.yaml.
	cfg.Backend.BaseURL = substituteEnvVars(cfg.Backend.BaseURL)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
