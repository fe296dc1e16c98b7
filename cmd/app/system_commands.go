package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/attachments/cmd/app/commands"
	"github.com/allisson/attachments/internal/app"
	"github.com/allisson/attachments/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server and the expired key cleanup worker",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "migrations-dir",
					Aliases: []string{"m"},
					Value:   "migrations",
					Usage:   "Directory holding the postgresql, mysql and sqlite migration folders",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(
					container.Logger(),
					cmd.String("migrations-dir"),
					cfg.DBDriver,
					cfg.DBConnectionString,
				)
			},
		},
	}
}
