package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/zulandar/planyard/internal/config"
	"github.com/zulandar/planyard/internal/db"
	"gorm.io/gorm"
)

// newLogger builds the process logger from the logging section. Log output
// goes to w so that command output on stdout stays parseable.
func newLogger(cfg config.LoggingConfig, w io.Writer) *log.Logger {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	opts := log.Options{
		Level:           level,
		Prefix:          "planyard",
		ReportTimestamp: true,
	}
	switch cfg.Format {
	case "json":
		opts.Formatter = log.JSONFormatter
	case "logfmt":
		opts.Formatter = log.LogfmtFormatter
	default:
		opts.Formatter = log.TextFormatter
	}
	return log.NewWithOptions(w, opts)
}

// connectFromConfig loads the config, opens the store and makes sure the
// schema is current.
func connectFromConfig(cmd *cobra.Command, configPath string) (*config.Config, *gorm.DB, *log.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Logging, cmd.ErrOrStderr())

	gormDB, err := db.Connect(cfg.Database, db.Options{
		Log:   logger.With("component", "gorm"),
		Debug: logger.GetLevel() == log.DebugLevel,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, nil, nil, err
	}
	return cfg, gormDB, logger, nil
}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.ErrOrStderr(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// scoped bounds one engine call with the configured statement timeout.
func scoped(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) (*gorm.DB, context.CancelFunc) {
	return db.Scoped(ctx, gormDB, cfg.Database.Timeout())
}
