// Package loader provides functions for loading the virtfleet configuration
// from YAML files.
package loader

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/virtfleet/internal/config"
)

// Defaults applied to omitted fields.
const (
	DefaultReconnectTimeout = 5 * time.Second
	DefaultDialTimeout      = 5 * time.Second
	DefaultPoolPollInterval = 10 * time.Second
	DefaultKeepAlive        = 5 * time.Second
	DefaultKeepAliveCount   = 5
	DefaultTagsNamespace    = "https://virtfleet.dev/xmlns/tags"
	DefaultCaptureInterval  = 30 * time.Second
	DefaultCaptureDir       = "./public/screenshots"
	DefaultChunkSize        = 64 * 1024
	DefaultStream           = "event"
	DefaultQueueSize        = 64
	DefaultSubjectPrefix    = "virtfleet"
	DefaultListen           = ":8080"
	DefaultLogLevel         = "info"
)

// LoadFromFile loads a configuration from a YAML file.
func LoadFromFile(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return LoadFromYAML(data)
}

// LoadFromYAML loads a configuration from YAML bytes, applies defaults and
// validates the result.
func LoadFromYAML(data []byte) (*config.Config, error) {
	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveToFile writes a configuration as YAML.
func SaveToFile(cfg *config.Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

// ApplyDefaults sets default values for optional fields.
func ApplyDefaults(cfg *config.Config) {
	if cfg.ReconnectTimeout == 0 {
		cfg.ReconnectTimeout = DefaultReconnectTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = DefaultKeepAlive
	}
	if cfg.KeepAliveCount == 0 {
		cfg.KeepAliveCount = DefaultKeepAliveCount
	}
	if cfg.PoolPollInterval == 0 {
		cfg.PoolPollInterval = DefaultPoolPollInterval
	}
	if cfg.TagsNamespace == "" {
		cfg.TagsNamespace = DefaultTagsNamespace
	}

	if cfg.Capture.Interval == 0 {
		cfg.Capture.Interval = DefaultCaptureInterval
	}
	if cfg.Capture.OutputDir == "" {
		cfg.Capture.OutputDir = DefaultCaptureDir
	}
	if cfg.Capture.ChunkSize == 0 {
		cfg.Capture.ChunkSize = DefaultChunkSize
	}

	if cfg.Broadcast.Stream == "" {
		cfg.Broadcast.Stream = DefaultStream
	}
	if cfg.Broadcast.QueueSize == 0 {
		cfg.Broadcast.QueueSize = DefaultQueueSize
	}
	if cfg.Broadcast.NATS.URL != "" && cfg.Broadcast.NATS.SubjectPrefix == "" {
		cfg.Broadcast.NATS.SubjectPrefix = DefaultSubjectPrefix
	}

	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = DefaultListen
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}

	// Host ids are used in paths; normalize them the same way everywhere
	for i := range cfg.Hosts {
		cfg.Hosts[i].ID = strings.ToLower(strings.TrimSpace(cfg.Hosts[i].ID))
		if cfg.Hosts[i].Name == "" {
			cfg.Hosts[i].Name = cfg.Hosts[i].ID
		}
	}
}
