package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	DB         DBConfig         `yaml:"db"`
	Log        LogConfig        `yaml:"log"`
	Transport  TransportConfig  `yaml:"transport"`
	Assignment AssignmentConfig `yaml:"assignment"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DBConfig selects the store. Driver is "sqlite" or "memory"; for memory,
// a non-empty Path is used as the journal file.
type DBConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

// AssignmentConfig seeds the engine. BatchSize is only used when the store
// has no stored value yet.
type AssignmentConfig struct {
	BatchSize   int           `yaml:"batch_size"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "annotask.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Assignment: AssignmentConfig{
			BatchSize:   10,
			LockTimeout: 300 * time.Second,
		},
		Catalog: CatalogConfig{
			Path: "data.jsonl",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "annotask",
		},
	}

	if path := os.Getenv("ANNOTASK_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("ANNOTASK_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("ANNOTASK_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ANNOTASK_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if driver := os.Getenv("ANNOTASK_DB_DRIVER"); driver != "" {
		cfg.DB.Driver = driver
	}
	if dbPath := os.Getenv("ANNOTASK_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("ANNOTASK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if mode := os.Getenv("ANNOTASK_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if sizeStr := os.Getenv("ANNOTASK_BATCH_SIZE"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ANNOTASK_BATCH_SIZE: %w", err)
		}
		cfg.Assignment.BatchSize = size
	}
	if timeoutStr := os.Getenv("ANNOTASK_LOCK_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ANNOTASK_LOCK_TIMEOUT: %w", err)
		}
		cfg.Assignment.LockTimeout = timeout
	}
	if catalogPath := os.Getenv("ANNOTASK_CATALOG_PATH"); catalogPath != "" {
		cfg.Catalog.Path = catalogPath
	}
	if enabled := os.Getenv("ANNOTASK_METRICS_ENABLED"); enabled != "" {
		on, err := strconv.ParseBool(enabled)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ANNOTASK_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = on
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DB.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown db driver %q", c.DB.Driver)
	}
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("unknown transport mode %q", c.Transport.Mode)
	}
	if c.Assignment.BatchSize < 1 {
		return fmt.Errorf("assignment.batch_size must be at least 1, got %d", c.Assignment.BatchSize)
	}
	if c.Assignment.LockTimeout <= 0 {
		return fmt.Errorf("assignment.lock_timeout must be positive, got %s", c.Assignment.LockTimeout)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
