// Package main provides the entry point for the graph synchronization worker.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/nutrio/graphsync/cmd/app/commands"
	"github.com/nutrio/graphsync/internal/config"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "graphsync",
		Usage:   "Synchronizes customer aggregates into the recommendation graph",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "worker",
				Usage: "Start the outbox polling worker",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunWorker(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
					return commands.RunMigrations(logger, cfg.DBDriver, cfg.DBConnectionString)
				},
			},
			{
				Name:  "replay-failed",
				Usage: "Reset failed outbox events to pending for reprocessing",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   100,
						Usage:   "Maximum number of failed events to replay",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunReplayFailed(ctx, cmd.Int("limit"))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
