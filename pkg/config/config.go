package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/srivatsav09/JobScheduler/pkg/models"
	"github.com/srivatsav09/JobScheduler/pkg/store"
)

// Config holds all process configuration, sourced from the environment
type Config struct {
	StoreURL     string // postgres://..., sqlite path, or "memory"
	TransportURL string // redis://..., or "memory"

	APIAddr     string
	MetricsAddr string

	WorkerPoolSize   int
	EngineTickMS     int
	EngineBatchSize  int
	DispatchLimit    int
	WorkerPopTimeout int // seconds
	DefaultPolicy    string

	LogLevel string
	LogJSON  bool

	StartupGraceS int
}

// Load reads configuration from the environment, applying defaults
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("STORE_URL", "jobs.db")
	v.SetDefault("TRANSPORT_URL", "redis://localhost:6379/0")
	v.SetDefault("API_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("WORKER_POOL_SIZE", 4)
	v.SetDefault("ENGINE_TICK_MS", 100)
	v.SetDefault("ENGINE_BATCH_SIZE", 50)
	v.SetDefault("ENGINE_DISPATCH_LIMIT", 0)
	v.SetDefault("WORKER_POP_TIMEOUT_S", 5)
	v.SetDefault("DEFAULT_POLICY", models.PolicyFCFS)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LOG_JSON", false)
	v.SetDefault("STARTUP_GRACE_S", 30)

	cfg := &Config{
		StoreURL:         v.GetString("STORE_URL"),
		TransportURL:     v.GetString("TRANSPORT_URL"),
		APIAddr:          v.GetString("API_ADDR"),
		MetricsAddr:      v.GetString("METRICS_ADDR"),
		WorkerPoolSize:   v.GetInt("WORKER_POOL_SIZE"),
		EngineTickMS:     v.GetInt("ENGINE_TICK_MS"),
		EngineBatchSize:  v.GetInt("ENGINE_BATCH_SIZE"),
		DispatchLimit:    v.GetInt("ENGINE_DISPATCH_LIMIT"),
		WorkerPopTimeout: v.GetInt("WORKER_POP_TIMEOUT_S"),
		DefaultPolicy:    v.GetString("DEFAULT_POLICY"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogJSON:          v.GetBool("LOG_JSON"),
		StartupGraceS:    v.GetInt("STARTUP_GRACE_S"),
	}

	if err := models.ValidatePolicy(cfg.DefaultPolicy); err != nil {
		return nil, fmt.Errorf("DEFAULT_POLICY: %w", err)
	}
	if cfg.WorkerPoolSize < 1 {
		return nil, fmt.Errorf("WORKER_POOL_SIZE must be at least 1")
	}
	if cfg.EngineTickMS < 1 {
		return nil, fmt.Errorf("ENGINE_TICK_MS must be at least 1")
	}
	return cfg, nil
}

// TickInterval returns the engine tick as a duration
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.EngineTickMS) * time.Millisecond
}

// PopTimeout returns the worker pop timeout as a duration
func (c *Config) PopTimeout() time.Duration {
	return time.Duration(c.WorkerPopTimeout) * time.Second
}

// StartupGrace returns the startup connection grace period
func (c *Config) StartupGrace() time.Duration {
	return time.Duration(c.StartupGraceS) * time.Second
}

// StoreConfig translates STORE_URL into a store configuration
func (c *Config) StoreConfig() store.Config {
	switch {
	case c.StoreURL == "memory":
		return store.Config{Type: "memory"}
	case strings.HasPrefix(c.StoreURL, "postgres://"),
		strings.HasPrefix(c.StoreURL, "postgresql://"):
		return store.Config{Type: "postgres", DSN: c.StoreURL}
	case strings.HasPrefix(c.StoreURL, "sqlite://"):
		return store.Config{Type: "sqlite", DSN: strings.TrimPrefix(c.StoreURL, "sqlite://")}
	default:
		// A bare path means SQLite
		return store.Config{Type: "sqlite", DSN: c.StoreURL}
	}
}
