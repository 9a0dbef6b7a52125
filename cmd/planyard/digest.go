package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/zulandar/planyard/internal/config"
	"github.com/zulandar/planyard/internal/digest"
	"gorm.io/gorm"
)

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Overdue and due-soon digest commands",
	}

	cmd.AddCommand(newDigestRunCmd())
	return cmd
}

func newDigestRunner(cfg *config.Config, gormDB *gorm.DB, logger *log.Logger) (*digest.Runner, error) {
	notifiers, err := digest.NotifiersFromConfig(cfg.Digest)
	if err != nil {
		return nil, err
	}
	return digest.NewRunner(digest.RunnerOpts{
		DB:            gormDB,
		Notifiers:     notifiers,
		DueWithinDays: cfg.Digest.DueWithinDays,
		Timeout:       cfg.Database.Timeout(),
		Log:           logger.WithPrefix("digest"),
		SkipEmpty:     true,
	})
}

func newDigestRunCmd() *cobra.Command {
	var (
		configPath string
		printOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the digest once and post it",
		Long: `Builds the digest for every project with an active plan and posts it to
each configured channel. With --print the digest is written to stdout and
nothing is posted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigestRun(cmd, configPath, printOnly)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Planyard config file")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print instead of posting")
	return cmd
}

func runDigestRun(cmd *cobra.Command, configPath string, printOnly bool) error {
	cfg, gormDB, logger, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if printOnly {
		cfg.Digest.SlackWebhookURL = ""
		cfg.Digest.DiscordToken = ""
	}
	runner, err := newDigestRunner(cfg, gormDB, logger)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	reports, err := runner.RunOnce(ctx)
	out := cmd.OutOrStdout()
	if printOnly {
		for _, r := range reports {
			fmt.Fprintln(out, digest.Format(r))
		}
	}
	if len(reports) == 0 && err == nil {
		fmt.Fprintln(out, "No active plans.")
	}
	return err
}
