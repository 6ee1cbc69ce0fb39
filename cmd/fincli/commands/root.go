package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/fincli/internal/app"
	"github.com/florianilch/fincli/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "fincli",
		Usage: "command-line client for the finance platform",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: app.DefaultConfigLogLevel,
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "auth--base-url",
				Usage: "authentication service base URL",
				Value: app.DefaultConfigAuthBaseURL,
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "resource service base URL",
				Value: app.DefaultConfigAPIBaseURL,
			},
			&cli.StringFlag{
				Name:  "store--file",
				Usage: "path to the credential file",
			},
			&cli.DurationFlag{
				Name:  "session--skew-margin",
				Usage: "clock-skew margin before a token counts as expired",
				Value: app.DefaultConfigSkewMargin,
			},
		},
		Commands: []*cli.Command{
			authCommand(),
			tenantCommand(),
			accountsCommand(),
			transactionsCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

// setup loads configuration, installs logging, and wires the app for a
// command action.
func setup(cmd *cli.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}

	return application, nil
}
