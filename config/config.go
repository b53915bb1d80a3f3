package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sketchdb/logger"
)

const (
	EnvResolutionLevel = "SKETCHDB_RESOLUTION_LEVEL"
	EnvStoreBackend    = "SKETCHDB_STORE_BACKEND"
	EnvCacheEnabled    = "SKETCHDB_CACHE_ENABLED"
	EnvLogMode         = "SKETCHDB_LOG_MODE"

	DefaultResolutionLevel = 16
	// MaxResolutionLevel keeps minCount = count >> k meaningful for uint64
	// counts.
	MaxResolutionLevel = 63

	BackendMemory = "memory"
	BackendBadger = "badger"
)

type Config struct {
	Sketch SketchConfig `toml:"sketch"`
	Store  StoreConfig  `toml:"store"`
	Log    LogConfig    `toml:"log"`
}

type SketchConfig struct {
	// ResolutionLevel is k: nodes holding fewer than count/2^k observations
	// lose their children on compression.
	ResolutionLevel int `toml:"resolution_level"`
}

type StoreConfig struct {
	Backend      string `toml:"backend"` // "memory" or "badger" (in-memory mode)
	CacheEnabled bool   `toml:"cache_enabled"`
}

type LogConfig struct {
	Mode string `toml:"mode"` // "development" or "production"
}

func DefaultConfig() *Config {
	return &Config{
		Sketch: SketchConfig{
			ResolutionLevel: DefaultResolutionLevel,
		},
		Store: StoreConfig{
			Backend:      BackendMemory,
			CacheEnabled: true,
		},
		Log: LogConfig{
			Mode: "development",
		},
	}
}

// LoadConfig reads a TOML file over the defaults, then applies environment
// overrides.
func LoadConfig(path string, log *zap.Logger) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyEnv(log)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// FromEnv is DefaultConfig with environment overrides applied.
func FromEnv(log *zap.Logger) (*Config, error) {
	config := DefaultConfig()
	config.ApplyEnv(log)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c *Config) ApplyEnv(log *zap.Logger) {
	c.Sketch.ResolutionLevel = GetEnvAsInt(EnvResolutionLevel, c.Sketch.ResolutionLevel, log)
	c.Store.Backend = GetEnv(EnvStoreBackend, c.Store.Backend, log)
	c.Store.CacheEnabled = GetEnvAsBool(EnvCacheEnabled, c.Store.CacheEnabled, log)
	c.Log.Mode = GetEnv(EnvLogMode, c.Log.Mode, log)
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var err error
	if c.Sketch.ResolutionLevel < 0 || c.Sketch.ResolutionLevel > MaxResolutionLevel {
		err = multierr.Append(err, fmt.Errorf("sketch.resolution_level must be in [0, %d], got %d",
			MaxResolutionLevel, c.Sketch.ResolutionLevel))
	}
	switch c.Store.Backend {
	case BackendMemory, BackendBadger:
	default:
		err = multierr.Append(err, fmt.Errorf("store.backend must be %q or %q, got %q",
			BackendMemory, BackendBadger, c.Store.Backend))
	}
	if logger.Mode(c.Log.Mode) == "" {
		err = multierr.Append(err, fmt.Errorf("log.mode %q is not recognized", c.Log.Mode))
	}
	return err
}

// NewLogger builds the logger for c.Log.Mode.
func (c *Config) NewLogger() (*zap.Logger, error) {
	return logger.New(logger.Mode(c.Log.Mode))
}
