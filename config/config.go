// Package config loads the service configuration from a YAML or JSON
// file with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fleetsync/core/connectivity"
	"github.com/kilianp07/fleetsync/core/metrics"
	"github.com/kilianp07/fleetsync/core/model"
	coresync "github.com/kilianp07/fleetsync/core/sync"
	infraconn "github.com/kilianp07/fleetsync/infra/connectivity"
)

type Config struct {
	Store        StoreConfig         `json:"store"`
	Queue        QueueConfig         `json:"queue"`
	Sync         coresync.Config     `json:"sync"`
	Connectivity connectivity.Config `json:"connectivity"`
	Probe        ProbeConfig         `json:"probe"`
	Metrics      metrics.Config      `json:"metrics"`
	// Fleet seeds the store of record; provisioning is out of band of
	// the sync path.
	Fleet []model.Vehicle `json:"fleet"`
}

// StoreConfig selects where the store of record lives.
type StoreConfig struct {
	// Listen is the address the server command binds to.
	Listen string `json:"listen"`
	// RemoteURL is the base URL the agent command syncs against.
	RemoteURL string `json:"remote_url"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
}

// QueueConfig defines the durable offline queue.
type QueueConfig struct {
	// Path is the SQLite database location.
	Path string `json:"path"`
	// MaxRetries is the attempt ceiling for transient failures.
	MaxRetries int `json:"max_retries"`
}

// SetDefaults applies sane defaults.
func (c *QueueConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "fleetsync-queue.db"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
}

// Validate checks mandatory fields.
func (c QueueConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("queue path is required")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	return nil
}

// ProbeConfig selects the reachability probe.
type ProbeConfig struct {
	// Kind is "http" (store health endpoint) or "mqtt" (fleet broker).
	Kind string               `json:"kind"`
	URL  string               `json:"url"`
	MQTT infraconn.MQTTConfig `json:"mqtt"`
}

// SetDefaults applies sane defaults.
func (c *ProbeConfig) SetDefaults() {
	if c.Kind == "" {
		c.Kind = "http"
	}
}

// Validate checks mandatory fields.
func (c ProbeConfig) Validate() error {
	switch c.Kind {
	case "http":
	case "mqtt":
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt probe requires a broker")
		}
	default:
		return fmt.Errorf("unknown probe kind %s", c.Kind)
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FS_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fs_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Store.SetDefaults()
	cfg.Queue.SetDefaults()
	cfg.Sync.SetDefaults()
	cfg.Connectivity.SetDefaults()
	cfg.Probe.SetDefaults()
	if err := cfg.Queue.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Sync.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Probe.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
