package main

import (
	"github.com/spf13/cobra"
	"github.com/zulandar/planyard/internal/mcpapi"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the planning tools over MCP on stdio",
		Long: `Runs an MCP server on stdin/stdout exposing plan_get, plan_commit_draft,
plan_shift, task_bump, plan_baseline and tasks_bulk_filter. Logs go to
stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, logger, err := connectFromConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return mcpapi.ServeStdio(mcpapi.Options{
				DB:      gormDB,
				Timeout: cfg.Database.Timeout(),
				Log:     logger.WithPrefix("mcp"),
				Version: Version,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Planyard config file")
	return cmd
}
