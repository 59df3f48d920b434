// Package config loads sqlcore settings from YAML and keeps them current.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/sqlcore/batch"
	"github.com/syssam/sqlcore/cache"
	"github.com/syssam/sqlcore/core"
	"github.com/syssam/sqlcore/dialect"
	"github.com/syssam/sqlcore/engine"
)

// Config holds the connection and execution settings of a sqlcore client.
type Config struct {
	// Dialect is one of postgres, mysql, sqlite or sqlserver, or a driver alias.
	Dialect string `yaml:"dialect"`
	// Driver is the database/sql driver name. Defaults by dialect.
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn"`

	Timeout   time.Duration `yaml:"timeout,omitempty"`
	BatchSize int           `yaml:"batch_size,omitempty"`

	// Vars are session variables set before each statement.
	Vars map[string]string `yaml:"vars,omitempty"`

	Cache CacheConfig `yaml:"cache,omitempty"`
	Log   LogConfig   `yaml:"log,omitempty"`
}

// CacheConfig configures the in-memory result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl,omitempty"`
}

// LogConfig configures statement logging.
type LogConfig struct {
	Level         string        `yaml:"level,omitempty"`
	Statements    bool          `yaml:"statements,omitempty"`
	SlowThreshold time.Duration `yaml:"slow_threshold,omitempty"`
}

// Default returns the configuration used for omitted settings.
func Default() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		BatchSize: batch.DefaultSize,
		Cache:     CacheConfig{TTL: time.Minute},
		Log:       LogConfig{Level: "info", SlowThreshold: 100 * time.Millisecond},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, rejecting unknown keys.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and normalizes the dialect name.
func (c *Config) Validate() error {
	var errs []error
	if c.Dialect == "" {
		errs = append(errs, errors.New("dialect is required"))
	} else if d, err := dialect.Get(c.Dialect); err != nil {
		errs = append(errs, err)
	} else {
		c.Dialect = d.Name()
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch_size must not be negative, got %d", c.BatchSize))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DriverName returns the database/sql driver registered for the dialect.
func (c *Config) DriverName() string {
	if c.Driver != "" {
		return c.Driver
	}
	switch c.Dialect {
	case dialect.Postgres:
		return "postgres"
	case dialect.MySQL:
		return "mysql"
	case dialect.SQLite:
		return "sqlite"
	case dialect.SQLServer:
		return "sqlserver"
	}
	return c.Dialect
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Context returns ctx carrying the configured session variables.
func (c *Config) Context(ctx context.Context) context.Context {
	names := make([]string, 0, len(c.Vars))
	for k := range c.Vars {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		ctx = engine.WithVar(ctx, k, c.Vars[k])
	}
	return ctx
}

// Engine returns an engine with the configured timeout and tracers.
func (c *Config) Engine(logger *slog.Logger, tracers ...engine.Tracer) *engine.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []engine.Option{engine.WithTimeout(c.Timeout)}
	if c.Log.SlowThreshold > 0 {
		opts = append(opts, engine.WithTracer(engine.NewStatsTracer(
			engine.WithSlowThreshold(c.Log.SlowThreshold),
			engine.WithSlowQueryHook(func(ctx context.Context, e *engine.Event) {
				logger.WarnContext(ctx, "slow query detected",
					"op", e.Op, "table", e.Table, "duration", e.Duration, "query", e.Preview())
			}),
		)))
	}
	if c.Log.Statements {
		opts = append(opts, engine.WithTracer(engine.NewLogTracer(engine.LogWithLogger(logger))))
	}
	for _, t := range tracers {
		opts = append(opts, engine.WithTracer(t))
	}
	return engine.New(opts...)
}

// Core returns a core executing on h with the configured settings. extra
// options are applied last.
func (c *Config) Core(h *engine.Handle, logger *slog.Logger, extra ...core.Option) *core.Core {
	opts := []core.Option{
		core.WithHandle(h),
		core.WithEngine(c.Engine(logger)),
		core.WithBatchSize(c.BatchSize),
	}
	if logger != nil {
		opts = append(opts, core.WithLogger(logger))
	}
	if c.Cache.Enabled {
		opts = append(opts, core.WithCache(cache.NewMemory()))
	}
	return core.New(append(opts, extra...)...)
}
