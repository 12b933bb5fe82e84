// Package config centralises runtime configuration helpers for the codec core.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding a settings file path.
const EnvConfigPath = "CODECCORE_CONFIG"

// SaturationConfig bounds the number of outstanding process messages per instance.
type SaturationConfig struct {
	Threshold int `yaml:"threshold"`
}

// ReclaimConfig tunes the background resource-reclamation sweep.
type ReclaimConfig struct {
	InactivityThreshold time.Duration `yaml:"inactivityThreshold"`
	SweepInterval       time.Duration `yaml:"sweepInterval"`
	BufferIdleThreshold time.Duration `yaml:"bufferIdleThreshold"`
}

// WorkerConfig sizes the shared background execution pool.
type WorkerConfig struct {
	Count      int `yaml:"count"`
	QueueDepth int `yaml:"queueDepth"`
}

// TelemetryConfig configures metric export.
type TelemetryConfig struct {
	OTLPEndpoint   string        `yaml:"otlpEndpoint"`
	ServiceName    string        `yaml:"serviceName"`
	ExportInterval time.Duration `yaml:"exportInterval"`
}

// Settings contains the configuration tree loaded from defaults and overrides.
type Settings struct {
	Saturation SaturationConfig `yaml:"saturation"`
	Reclaim    ReclaimConfig    `yaml:"reclaim"`
	Workers    WorkerConfig     `yaml:"workers"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// Default returns the default codec core configuration.
func Default() Settings {
	return Settings{
		Saturation: SaturationConfig{Threshold: 16},
		Reclaim: ReclaimConfig{
			InactivityThreshold: 10 * time.Second,
			SweepInterval:       5 * time.Second,
			BufferIdleThreshold: time.Minute,
		},
		Workers: WorkerConfig{Count: 4, QueueDepth: 64},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:   "",
			ServiceName:    "codeccore",
			ExportInterval: 15 * time.Second,
		},
	}
}

// Load reads settings from the given YAML file, overlaying the defaults.
// An empty path consults EnvConfigPath; when neither is set the defaults are
// returned unchanged.
func Load(path string) (Settings, error) {
	settings := Default()
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path == "" {
		return settings, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return settings, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// Validate checks the settings tree for unusable values.
func (s Settings) Validate() error {
	if s.Saturation.Threshold <= 0 {
		return fmt.Errorf("config: saturation threshold must be positive, got %d", s.Saturation.Threshold)
	}
	if s.Reclaim.InactivityThreshold <= 0 {
		return fmt.Errorf("config: reclaim inactivity threshold must be positive, got %s", s.Reclaim.InactivityThreshold)
	}
	if s.Reclaim.SweepInterval <= 0 {
		return fmt.Errorf("config: reclaim sweep interval must be positive, got %s", s.Reclaim.SweepInterval)
	}
	if s.Reclaim.SweepInterval > s.Reclaim.InactivityThreshold {
		return fmt.Errorf("config: sweep interval %s exceeds inactivity threshold %s", s.Reclaim.SweepInterval, s.Reclaim.InactivityThreshold)
	}
	if s.Workers.Count <= 0 {
		return fmt.Errorf("config: worker count must be positive, got %d", s.Workers.Count)
	}
	if s.Workers.QueueDepth < 0 {
		return fmt.Errorf("config: worker queue depth must be non-negative, got %d", s.Workers.QueueDepth)
	}
	return nil
}
