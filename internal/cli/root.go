// Package cli implements the choreboard command line.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/choreboard/choreboard/internal/config"
	"github.com/choreboard/choreboard/internal/database"
	"github.com/choreboard/choreboard/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the choreboard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "choreboard",
		Short: "Family chore tracker",
		Long:  "Choreboard tracks family chores, recurring schedules and rewards behind a JSON API.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVAPIDCommand())

	return cmd
}

// env is what every command that touches the database needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
}

func (e *env) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

func loadConfig(opts *RootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	return cfg, logging.Setup(level, cfg.Log.Format), nil
}

// setup loads config and opens the database. migrate controls whether pending
// migrations run on open.
func setup(opts *RootOptions, migrate bool) (*env, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	dbCfg := database.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}
	open := database.Connect
	if migrate {
		open = database.Open
	}
	db, err := open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("database opened", "driver", cfg.Database.Driver)
	return &env{cfg: cfg, logger: logger, db: db}, nil
}
