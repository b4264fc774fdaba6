// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memreg

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/lesismal/memreg/logging"
	"github.com/lesismal/memreg/mempool"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix of the environment variables read by LoadConfig.
	EnvPrefix = "MEMREG"

	// DefaultStagingSoftLimit .
	DefaultStagingSoftLimit = 8

	// DefaultBootstrapPoolSize .
	DefaultBootstrapPoolSize = 1024 * 64

	// DefaultWatchInterval .
	DefaultWatchInterval = time.Second
)

// Config Of Manager and Module.
type Config struct {
	// Name describes the manager for logging, it's set to "memreg" by default.
	Name string `yaml:"name" envconfig:"NAME"`

	// StagingSoftLimit is how many allocators a module expects to stage before
	// the environment is attached, it's set to 8 by default.
	// Exceeding it logs a warning, or panics when StagingStrict is set.
	// A negative value disables the check.
	StagingSoftLimit int `yaml:"staging_soft_limit" envconfig:"STAGING_SOFT_LIMIT"`

	// StagingStrict turns the staging soft limit into a hard one.
	StagingStrict bool `yaml:"staging_strict" envconfig:"STAGING_STRICT"`

	// BootstrapPoolSize is the size of the per module arena that
	// CreateLazyAllocator carves from, it's set to 64k by default.
	BootstrapPoolSize int `yaml:"bootstrap_pool_size" envconfig:"BOOTSTRAP_POOL_SIZE"`

	// TrackingMode is applied to every registered allocator when set:
	// "none", "counts" or "full".
	TrackingMode string `yaml:"tracking_mode" envconfig:"TRACKING_MODE"`

	// Remappings maps allocator names to the allocator serving them once the
	// configuration is finalized.
	Remappings map[string]string `yaml:"remappings" envconfig:"REMAPPINGS"`

	// UseStdOverride routes every overridable allocator to the Go heap.
	UseStdOverride bool `yaml:"use_std_override" envconfig:"USE_STD_OVERRIDE"`

	// LogLevel .
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// DebugAddr is the listening addr of the debug HTTP surface.
	DebugAddr string `yaml:"debug_addr" envconfig:"DEBUG_ADDR"`

	// WatchInterval is how often the debug websocket pushes stats.
	WatchInterval time.Duration `yaml:"watch_interval" envconfig:"WATCH_INTERVAL"`

	// Logger overrides logging.DefaultLogger.
	Logger logging.Logger `yaml:"-" ignored:"true"`
}

// DefaultConfig .
func DefaultConfig() Config {
	return Config{
		Name:              "memreg",
		StagingSoftLimit:  DefaultStagingSoftLimit,
		BootstrapPoolSize: DefaultBootstrapPoolSize,
		LogLevel:          "info",
		DebugAddr:         "localhost:6070",
		WatchInterval:     DefaultWatchInterval,
	}
}

// LoadConfig reads path as YAML on top of DefaultConfig, then applies
// MEMREG_* environment variables. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return conf, fmt.Errorf("read config %q: %w", path, err)
		}
		if err = yaml.Unmarshal(data, &conf); err != nil {
			return conf, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &conf); err != nil {
		return conf, fmt.Errorf("read environment: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

// Validate .
func (c *Config) Validate() error {
	if _, err := mempool.ParseTrackingMode(c.TrackingMode); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.BootstrapPoolSize < 0 {
		return fmt.Errorf("invalid bootstrap pool size: %v", c.BootstrapPoolSize)
	}
	for from, to := range c.Remappings {
		if from == "" || to == "" || from == to {
			return fmt.Errorf("%w: %q -> %q", ErrInvalidRemapping, from, to)
		}
	}
	return nil
}

func (c *Config) logger() logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.DefaultLogger
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "memreg"
	}
	if c.StagingSoftLimit == 0 {
		c.StagingSoftLimit = DefaultStagingSoftLimit
	}
	if c.BootstrapPoolSize <= 0 {
		c.BootstrapPoolSize = DefaultBootstrapPoolSize
	}
	if c.WatchInterval <= 0 {
		c.WatchInterval = DefaultWatchInterval
	}
}
