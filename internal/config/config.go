package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyluth/loft/internal/instance"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where loft looks for its configuration file.
const DefaultPath = "loft.yml"

// Snapshot backends
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Environment overrides, applied after the file is read.
const (
	EnvInstanceName = "LOFT_INSTANCE_NAME"
	EnvRedisURL     = "REDIS_URL"
	EnvListenAddr   = "LOFT_LISTEN_ADDR"
	EnvSnapshotDir  = "LOFT_SNAPSHOT_DIR"
)

// LoftConfig represents the top-level loft.yml configuration
type LoftConfig struct {
	Version    string            `yaml:"version"`
	Instance   string            `yaml:"instance"`
	ListenAddr string            `yaml:"listen_addr"`
	Redis      *RedisConfig      `yaml:"redis,omitempty"` // Omit to run without Redis
	Snapshots  SnapshotsConfig   `yaml:"snapshots"`
	Dispatcher *DispatcherConfig `yaml:"dispatcher,omitempty"`
	Hub        *HubConfig        `yaml:"hub,omitempty"`
}

// RedisConfig locates the shared Redis server
type RedisConfig struct {
	URL string `yaml:"url"` // redis://[user:password@]host:port[/db]
}

// SnapshotsConfig selects where checkpoints are persisted
type SnapshotsConfig struct {
	Backend string `yaml:"backend"` // "file" (default) or "redis"
	Dir     string `yaml:"dir"`     // Required for the file backend
}

// DispatcherConfig tunes content delivery to local subscribers
type DispatcherConfig struct {
	QueueSize       int           `yaml:"queue_size,omitempty"`       // Default: 64
	DeliveryTimeout time.Duration `yaml:"delivery_timeout,omitempty"` // Default: 100ms
}

// HubConfig tunes WebSocket connections
type HubConfig struct {
	MaxMessageSize int64    `yaml:"max_message_size,omitempty"` // Bytes, default: 65536
	SendBuffer     int      `yaml:"send_buffer,omitempty"`      // Default: 256
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`  // Empty allows any origin
}

// Default returns the configuration used when no loft.yml exists.
func Default() *LoftConfig {
	return &LoftConfig{
		Version:    "1.0",
		Instance:   instance.DefaultName,
		ListenAddr: ":8080",
		Snapshots: SnapshotsConfig{
			Backend: BackendFile,
			Dir:     "snapshots",
		},
	}
}

// applyDefaults fills unset optional sections.
func (c *LoftConfig) applyDefaults() {
	if c.Instance == "" {
		c.Instance = instance.DefaultName
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Snapshots.Backend == "" {
		c.Snapshots.Backend = BackendFile
	}
	if c.Snapshots.Backend == BackendFile && c.Snapshots.Dir == "" {
		c.Snapshots.Dir = "snapshots"
	}
	if c.Dispatcher == nil {
		c.Dispatcher = &DispatcherConfig{}
	}
	if c.Dispatcher.QueueSize == 0 {
		c.Dispatcher.QueueSize = 64
	}
	if c.Dispatcher.DeliveryTimeout == 0 {
		c.Dispatcher.DeliveryTimeout = 100 * time.Millisecond
	}
	if c.Hub == nil {
		c.Hub = &HubConfig{}
	}
	if c.Hub.MaxMessageSize == 0 {
		c.Hub.MaxMessageSize = 64 * 1024
	}
	if c.Hub.SendBuffer == 0 {
		c.Hub.SendBuffer = 256
	}
}

// ApplyEnv overrides file values with environment variables read via lookup.
func (c *LoftConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvInstanceName); ok && v != "" {
		c.Instance = v
	}
	if v, ok := lookup(EnvRedisURL); ok && v != "" {
		if c.Redis == nil {
			c.Redis = &RedisConfig{}
		}
		c.Redis.URL = v
	}
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		c.ListenAddr = v
	}
	if v, ok := lookup(EnvSnapshotDir); ok && v != "" {
		c.Snapshots.Dir = v
	}
}

// Validate performs strict validation on the configuration
func (c *LoftConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := instance.ValidateName(c.Instance); err != nil {
		return err
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}

	if c.Redis != nil {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required when the redis section is present")
		}
		if _, err := redis.ParseURL(c.Redis.URL); err != nil {
			return fmt.Errorf("invalid redis.url: %w", err)
		}
	}

	switch c.Snapshots.Backend {
	case BackendFile:
		if c.Snapshots.Dir == "" {
			return fmt.Errorf("snapshots.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Redis == nil {
			return fmt.Errorf("snapshots.backend 'redis' requires a redis section or %s", EnvRedisURL)
		}
	default:
		return fmt.Errorf("invalid snapshots.backend: %s (must be 'file' or 'redis')", c.Snapshots.Backend)
	}

	if c.Dispatcher != nil {
		if c.Dispatcher.QueueSize < 0 {
			return fmt.Errorf("dispatcher.queue_size must be >= 1, got %d", c.Dispatcher.QueueSize)
		}
		if c.Dispatcher.DeliveryTimeout < 0 {
			return fmt.Errorf("dispatcher.delivery_timeout must be positive, got %s", c.Dispatcher.DeliveryTimeout)
		}
	}

	if c.Hub != nil {
		if c.Hub.MaxMessageSize < 0 {
			return fmt.Errorf("hub.max_message_size must be positive, got %d", c.Hub.MaxMessageSize)
		}
		if c.Hub.SendBuffer < 0 {
			return fmt.Errorf("hub.send_buffer must be >= 1, got %d", c.Hub.SendBuffer)
		}
		for _, origin := range c.Hub.AllowedOrigins {
			if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
				return fmt.Errorf("hub.allowed_origins: %q must start with http:// or https://", origin)
			}
		}
	}

	return nil
}

// RedisOptions returns client options for the configured Redis server,
// or nil if Redis is not configured.
func (c *LoftConfig) RedisOptions() (*redis.Options, error) {
	if c.Redis == nil {
		return nil, nil
	}
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis.url: %w", err)
	}
	return opts, nil
}

// Parse decodes loft.yml content, applies defaults and environment
// overrides from lookup, and validates the result.
func Parse(data []byte, lookup func(string) (string, bool)) (*LoftConfig, error) {
	var config LoftConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.applyDefaults()
	config.ApplyEnv(lookup)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Load reads and validates loft.yml from the specified path
func Load(path string) (*LoftConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, os.LookupEnv)
}

// LoadOrDefault behaves like Load, but falls back to Default (plus
// environment overrides) when path does not exist.
func LoadOrDefault(path string) (*LoftConfig, error) {
	config, err := Load(path)
	if err == nil {
		return config, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	config = Default()
	config.applyDefaults()
	config.ApplyEnv(os.LookupEnv)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
