package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Pocket/content-monorepo-sub003/pkg/cli"
	"github.com/Pocket/content-monorepo-sub003/pkg/config"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/retention"
	"github.com/Pocket/content-monorepo-sub003/pkg/server"
	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/health"
	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/tracing"
)

type runOptions struct {
	listenAddress string
	dryRun        bool
	sweepOnStart  bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the HTTP server and the retention scheduler",
		Long: `Start the prospects service with the specified configuration.

The server accepts candidate batches over HTTP, serves single records, and runs
retention sweeps over the configured partitions on the configured schedule.
When a config file is given, retention settings are reloaded when it changes.

Examples:
  # Start with a config file
  prospects run --config /etc/prospects/config.yaml

  # Override listen address
  prospects run --listen 0.0.0.0:8080

  # Validate config and storage without starting the server
  prospects run --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate config and storage without starting the server")
	cmd.Flags().BoolVar(&opts.sweepOnStart, "sweep-on-start", false, "sweep every configured partition once before serving")

	return cmd
}

func runServer(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	cfg, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.listenAddress != "" {
		cfg.Server.ListenAddress = opts.listenAddress
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(cfg, registry)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, cfg.Telemetry.Health.CheckTimeout)
	err = a.store.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("storage %s unreachable: %w", cfg.Storage.Backend, err))
	}

	if opts.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid, %s storage reachable\n", cfg.Storage.Backend)
		return nil
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	scheduler := retention.NewScheduler(a.sweeper, retentionConfig(cfg))
	if opts.sweepOnStart {
		summary := scheduler.RunOnce(ctx)
		slog.Info("startup sweep completed", "summary", summary.String())
	}
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer scheduler.Stop()

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("storage", health.PingCheck(a.store))
	if cfg.Retention.Schedule != "" {
		checker.RegisterCheck("scheduler", func(context.Context) error {
			if !scheduler.IsRunning() {
				return fmt.Errorf("retention scheduler is not running")
			}
			return nil
		})
	}

	if root.configPath != "" {
		watcher, err := config.NewWatcher(root.configPath, config.DefaultDebounceInterval)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer watcher.Stop()

		go func() {
			if err := watcher.Watch(ctx, reloadRetention(scheduler, a)); err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
	}

	srv, err := server.New(&cfg.Server, &cfg.Telemetry, server.Dependencies{
		Records:       a.store,
		Processor:     a.processor,
		Sweeper:       a.sweeper,
		Checker:       checker,
		Metrics:       a.metrics,
		Version:       versionInfo(),
		MaxAgeMinutes: a.processor.MaxAgeMinutes,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	slog.Info("prospects starting",
		"version", Version,
		"listen_address", cfg.Server.ListenAddress,
		"backend", cfg.Storage.Backend,
		"schedule", cfg.Retention.Schedule,
		"max_age_minutes", cfg.Retention.MaxAgeMinutes,
		"tracing", tracer.Enabled(),
	)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	slog.Info("prospects stopped")
	return nil
}

// reloadRetention applies the retention settings of a reloaded config. Other
// sections require a restart.
func reloadRetention(scheduler *retention.Scheduler, a *app) func(*config.Config) error {
	return func(cfg *config.Config) error {
		if err := scheduler.Update(retentionConfig(cfg)); err != nil {
			return err
		}
		a.processor.SetMaxAgeMinutes(cfg.Retention.MaxAgeMinutes)
		return nil
	}
}
