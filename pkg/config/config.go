// Package config handles Yggdrasil configuration from YAML files and
// environment variables.
//
// Configuration is resolved in three layers, later layers winning:
// built-in defaults, an optional YAML file, then YGGDRASIL_-prefixed
// environment variables. Call Validate() before use.
//
// Example Usage:
//
//	cfg, err := config.Load("yggdrasil.yaml")
//	if err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
//	engine, err := storage.NewBadgerEngine(cfg.Storage.DataDir)
//
// Environment Variables:
//   - YGGDRASIL_DATA_DIR="./data"
//   - YGGDRASIL_IN_MEMORY=true
//   - YGGDRASIL_SYNC_WRITES=false
//   - YGGDRASIL_MAX_DEPTH=5
//   - YGGDRASIL_MIN_EDGE_STRENGTH=0.0
//   - YGGDRASIL_CLUSTER_MIN_SIZE=3
//   - YGGDRASIL_CLUSTER_EXPAND_STRENGTH=0.5
//   - YGGDRASIL_CLUSTER_MAX_SIZE=20
//   - YGGDRASIL_LOG_LEVEL="info"
//   - YGGDRASIL_LOG_FORMAT="json" or "console"
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all Yggdrasil configuration.
//
// Sections:
//   - Storage: engine selection and data directory
//   - Traversal: default bounds for path searches
//   - Cluster: cluster detection thresholds
//   - Logging: log level and output format
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Traversal TraversalConfig `yaml:"traversal"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig selects and tunes the storage engine.
type StorageConfig struct {
	// DataDir is the directory for Badger data files. Ignored when
	// InMemory is set.
	DataDir string `yaml:"data_dir"`
	// InMemory runs Badger without persistence. Useful for tests and
	// scratch graphs.
	InMemory bool `yaml:"in_memory"`
	// SyncWrites forces an fsync per write. Durable but slow.
	SyncWrites bool `yaml:"sync_writes"`
}

// TraversalConfig holds default bounds for path searches. Callers can
// override these per call.
type TraversalConfig struct {
	// MaxDepth is the default hop limit for path searches.
	MaxDepth int `yaml:"max_depth"`
	// MinEdgeStrength is the default pruning threshold.
	MinEdgeStrength float64 `yaml:"min_edge_strength"`
	// DiscoverMaxHops bounds connection discovery.
	DiscoverMaxHops int `yaml:"discover_max_hops"`
}

// ClusterConfig holds cluster detection thresholds.
type ClusterConfig struct {
	MinSize        int     `yaml:"min_size"`
	ExpandStrength float64 `yaml:"expand_strength"`
	MaxClusterSize int     `yaml:"max_cluster_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:    "./data",
			InMemory:   false,
			SyncWrites: false,
		},
		Traversal: TraversalConfig{
			MaxDepth:        5,
			MinEdgeStrength: 0,
			DiscoverMaxHops: 3,
		},
		Cluster: ClusterConfig{
			MinSize:        3,
			ExpandStrength: 0.5,
			MaxClusterSize: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load resolves configuration from defaults, the YAML file at path (skipped
// when path is empty or the file does not exist), and environment
// variables, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv resolves configuration from defaults and environment
// variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func (c *Config) applyEnv() {
	c.Storage.DataDir = getEnv("YGGDRASIL_DATA_DIR", c.Storage.DataDir)
	c.Storage.InMemory = getEnvBool("YGGDRASIL_IN_MEMORY", c.Storage.InMemory)
	c.Storage.SyncWrites = getEnvBool("YGGDRASIL_SYNC_WRITES", c.Storage.SyncWrites)

	c.Traversal.MaxDepth = getEnvInt("YGGDRASIL_MAX_DEPTH", c.Traversal.MaxDepth)
	c.Traversal.MinEdgeStrength = getEnvFloat("YGGDRASIL_MIN_EDGE_STRENGTH", c.Traversal.MinEdgeStrength)
	c.Traversal.DiscoverMaxHops = getEnvInt("YGGDRASIL_DISCOVER_MAX_HOPS", c.Traversal.DiscoverMaxHops)

	c.Cluster.MinSize = getEnvInt("YGGDRASIL_CLUSTER_MIN_SIZE", c.Cluster.MinSize)
	c.Cluster.ExpandStrength = getEnvFloat("YGGDRASIL_CLUSTER_EXPAND_STRENGTH", c.Cluster.ExpandStrength)
	c.Cluster.MaxClusterSize = getEnvInt("YGGDRASIL_CLUSTER_MAX_SIZE", c.Cluster.MaxClusterSize)

	c.Logging.Level = getEnv("YGGDRASIL_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("YGGDRASIL_LOG_FORMAT", c.Logging.Format)
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if !c.Storage.InMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("storage: data_dir required unless in_memory is set")
	}
	if c.Traversal.MaxDepth <= 0 {
		return fmt.Errorf("traversal: max_depth must be positive, got %d", c.Traversal.MaxDepth)
	}
	if c.Traversal.MinEdgeStrength < 0 || c.Traversal.MinEdgeStrength > 1 {
		return fmt.Errorf("traversal: min_edge_strength must be in [0, 1], got %g", c.Traversal.MinEdgeStrength)
	}
	if c.Traversal.DiscoverMaxHops <= 0 {
		return fmt.Errorf("traversal: discover_max_hops must be positive, got %d", c.Traversal.DiscoverMaxHops)
	}
	if c.Cluster.MinSize < 1 {
		return fmt.Errorf("cluster: min_size must be at least 1, got %d", c.Cluster.MinSize)
	}
	if c.Cluster.ExpandStrength < 0 || c.Cluster.ExpandStrength > 1 {
		return fmt.Errorf("cluster: expand_strength must be in [0, 1], got %g", c.Cluster.ExpandStrength)
	}
	if c.Cluster.MaxClusterSize < c.Cluster.MinSize {
		return fmt.Errorf("cluster: max_cluster_size %d below min_size %d", c.Cluster.MaxClusterSize, c.Cluster.MinSize)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
