package main

import (
	"github.com/spf13/cobra"
	"github.com/zulandar/planyard/internal/api"
	"github.com/zulandar/planyard/internal/digest"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		withDigest bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serves the plan API on the configured port. With --digest the overdue
digest also runs on the schedule from the digest section of the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, withDigest)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Planyard config file")
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides server.port)")
	cmd.Flags().BoolVar(&withDigest, "digest", false, "also run the scheduled digest")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, withDigest bool) error {
	cfg, gormDB, logger, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	var runner *digest.Runner
	if withDigest {
		runner, err = newDigestRunner(cfg, gormDB, logger)
		if err != nil {
			return err
		}
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Start(ctx, api.StartOpts{
			DB:      gormDB,
			Port:    port,
			Timeout: cfg.Database.Timeout(),
			Log:     logger.WithPrefix("api"),
			Out:     cmd.OutOrStdout(),
		})
	})
	if runner != nil {
		g.Go(func() error {
			return runner.Schedule(ctx, cfg.Digest.Schedule)
		})
	}
	return g.Wait()
}
