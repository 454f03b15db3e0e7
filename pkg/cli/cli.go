package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string, version string) error {
	// Values already present in the environment win over .env.
	if err := godotenv.Load(); err == nil {
		logging.Default().Debug("Loaded .env file")
	}

	if err := newApp(version).Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}

func newApp(version string) *cli.Command {
	var loggerCfg config.Logger
	var closer func()

	return &cli.Command{
		Name:    "mnemosyne",
		Usage:   "Persistent semantic memory server",
		Version: version,
		Flags:   loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f

			logging.Default().Debug("Starting mnemosyne", "logger", loggerCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(version),
			cmdMigrate(),
			cmdSave(),
			cmdSearch(),
			cmdList(),
			cmdDelete(),
			cmdArchive(),
			cmdBulkDelete(),
			cmdStats(),
			cmdExport(),
			cmdChat(),
		},
	}
}
