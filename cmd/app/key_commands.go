package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/attachments/cmd/app/commands"
	"github.com/allisson/attachments/internal/app"
	"github.com/allisson/attachments/internal/config"
	cryptoService "github.com/allisson/attachments/internal/crypto/service"
)

func kmsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "kms-provider",
			Value: "",
			Usage: "KMS provider (localsecrets, gcpkms, awskms, azurekeyvault, hashivault); omit for a plaintext key",
		},
		&cli.StringFlag{
			Name:  "kms-key-uri",
			Value: "",
			Usage: "KMS key URI (e.g., base64key://, gcpkms://projects/.../cryptoKeys/...)",
		},
	}
}

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-master-key",
			Usage: "Generate a new master key for wrapping server keys",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Value:   "",
					Usage:   "Master key ID (e.g., prod-master-key-2026)",
				},
			}, kmsFlags()...),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateMasterKey(
					ctx,
					cryptoService.NewKMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("kms-provider"),
					cmd.String("kms-key-uri"),
				)
			},
		},
		{
			Name:  "rotate-master-key",
			Usage: "Generate a new master key and append it to MASTER_KEYS as the active key",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Value:   "",
					Usage:   "New master key ID (e.g., prod-master-key-2027)",
				},
			}, kmsFlags()...),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunRotateMasterKey(
					ctx,
					cryptoService.NewKMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("kms-provider"),
					cmd.String("kms-key-uri"),
					os.Getenv("MASTER_KEYS"),
					os.Getenv("ACTIVE_MASTER_KEY_ID"),
				)
			},
		},
		{
			Name:  "rewrap-server-keys",
			Usage: "Re-wrap server keys under the active master key after a rotation",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "batch-size",
					Aliases: []string{"b"},
					Value:   100,
					Usage:   "Number of server keys to re-wrap per transaction",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyVault, err := container.KeyVaultUseCase()
				if err != nil {
					return err
				}

				masterKeyChain, err := container.MasterKeyChain()
				if err != nil {
					return err
				}

				return commands.RunRewrapServerKeys(
					ctx,
					keyVault,
					container.Logger(),
					commands.DefaultIO().Writer,
					masterKeyChain.ActiveMasterKeyID(),
					int(cmd.Int("batch-size")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "create-server-key",
			Usage: "Generate a server key for a conversation or user",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "conversation-id",
					Aliases: []string{"c"},
					Usage:   "Conversation the key is scoped to",
				},
				&cli.StringFlag{
					Name:    "user-id",
					Aliases: []string{"u"},
					Usage:   "User the key is scoped to",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyVault, err := container.KeyVaultUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateServerKey(
					ctx,
					keyVault,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("conversation-id"),
					cmd.String("user-id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "cleanup-expired-keys",
			Usage: "Deactivate every expired server key",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyVault, err := container.KeyVaultUseCase()
				if err != nil {
					return err
				}

				return commands.RunCleanupExpiredKeys(
					ctx,
					keyVault,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
