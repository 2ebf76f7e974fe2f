// Command taskbot runs the shared task list bot.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/taskbot/app"
	"github.com/m3rciful/taskbot/core/buildinfo"
	"github.com/m3rciful/taskbot/core/cmd"
	"github.com/m3rciful/taskbot/core/config"
	"github.com/m3rciful/taskbot/core/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "taskbot",
		Short:         "Telegram bot for shared task lists",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (falls back to $"+cmd.DefaultConfigEnvVar+").")

	opts := func() cmd.Options {
		return cmd.Options{
			ConfigPath:        configPath,
			DefaultConfigPath: "config.yaml",
			NewApp:            newApp,
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Poll Telegram and serve updates",
			RunE: func(c *cobra.Command, _ []string) error {
				return cmd.Run(c.Context(), opts())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations and exit",
			RunE: func(c *cobra.Command, _ []string) error {
				return cmd.Migrate(c.Context(), opts())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			RunE: func(c *cobra.Command, _ []string) error {
				_, _ = fmt.Fprintf(c.OutOrStdout(), "taskbot %s\n", buildinfo.String())
				return nil
			},
		},
	)
	return root
}

func newApp(ctx context.Context, cfg *config.Config, st storage.Storage) (cmd.Runnable, error) {
	a, err := app.New(ctx, cfg, st)
	if err != nil {
		return nil, err
	}
	return a, nil
}
