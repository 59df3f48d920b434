// Package cli implements the sqlcore command line.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/syssam/sqlcore/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"
	Config  string
	Dialect string
	Driver  string
	DSN     string
	Timeout time.Duration

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the sqlcore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "sqlcore",
		Short:         "Build and run portable SQL statements",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log statements and debug output to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVarP(&opts.Dialect, "dialect", "d", "", "SQL dialect (postgres|mysql|sqlite|sqlserver)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database/sql driver name, defaults by dialect")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "data source name")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "statement timeout")

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewGenCommand(opts))

	return cmd
}

// load merges the configuration file with the flags and installs the logger.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.Config != "" {
		var err error
		if cfg, err = config.Load(o.Config); err != nil {
			return err
		}
	}
	o.merge(cfg)
	level := cfg.LogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.logger)
	return nil
}

// merge applies the flags over cfg and makes it the current configuration.
func (o *RootOptions) merge(cfg *config.Config) {
	if o.Dialect != "" {
		cfg.Dialect = o.Dialect
	}
	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	if o.DSN != "" {
		cfg.DSN = o.DSN
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}
	if o.Verbose {
		cfg.Log.Statements = true
	}
	o.cfg = cfg
}

// config returns the validated configuration.
func (o *RootOptions) config() (*config.Config, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	return o.cfg, nil
}

// open connects to the configured database.
func (o *RootOptions) open(ctx context.Context) (*sql.DB, *config.Config, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DSN == "" {
		return nil, nil, errors.New("a DSN is required: set --dsn or dsn in the config file")
	}
	db, err := sql.Open(cfg.DriverName(), cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.DriverName(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	o.logger.Debug("connected", "dialect", cfg.Dialect, "driver", cfg.DriverName())
	return db, cfg, nil
}
