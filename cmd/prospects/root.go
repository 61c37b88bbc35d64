package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Pocket/content-monorepo-sub003/pkg/cli"
	"github.com/Pocket/content-monorepo-sub003/pkg/config"
	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/logging"
)

// rootOptions holds the global flags and the lazily loaded configuration.
type rootOptions struct {
	configPath string
	output     string
	logLevel   string

	cfg *config.Config
}

// loadConfig reads the configuration once, applies flag overrides and
// installs the default logger.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}

	cfg, err := config.LoadConfigWithEnvOverrides(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Telemetry.Logging.Level = o.logLevel
	}

	if _, err := logging.Setup(cfg.Telemetry.Logging, cmd.ErrOrStderr()); err != nil {
		return nil, cli.NewFlagError("log-level", err.Error())
	}

	o.cfg = cfg
	return cfg, nil
}

// formatter returns the formatter selected by --output.
func (o *rootOptions) formatter() (cli.Formatter, cli.OutputFormat, error) {
	format, err := cli.ParseOutputFormat(o.output)
	if err != nil {
		return nil, "", err
	}
	return cli.NewFormatter(format), format, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "prospects",
		Short: "Prospects - candidate batch store with per-partition retention",
		Long: `Prospects stores candidate batches produced by recommendation generation
runs. Each batch is written per scheduled surface and candidate type, and
candidates older than the configured threshold are evicted in bounded chunks,
either on a cron schedule or when a new batch for the same partition arrives.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (defaults and environment only when empty)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", string(cli.FormatText), "output format (text, json, csv)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newSweepCmd(opts),
		newIngestCmd(opts),
		newGetCmd(opts),
		newVersionCmd(opts),
	)

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return execute(context.Background(), newRootCmd(), os.Args[1:])
}

func execute(ctx context.Context, cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}
