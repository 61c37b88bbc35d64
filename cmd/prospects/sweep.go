package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Pocket/content-monorepo-sub003/pkg/cli"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/retention"
)

type sweepOptions struct {
	surface       string
	candidateType string
	maxAgeMinutes int
	all           bool
}

func newSweepCmd(root *rootOptions) *cobra.Command {
	opts := &sweepOptions{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evict stale candidates now",
		Long: `Evict every candidate older than the staleness threshold from one
partition (--surface and --type), or from every configured partition (--all).

The command exits with status 3 when some stale candidates could not be
deleted; running it again retries them.

Examples:
  # Sweep one partition with the configured threshold
  prospects sweep --surface NEW_TAB_EN_US --type global

  # Evict everything older than one hour
  prospects sweep --surface NEW_TAB_EN_US --type global --max-age 60

  # Sweep the configured partitions and print JSON
  prospects sweep --all -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.surface, "surface", "", "scheduled surface GUID")
	cmd.Flags().StringVar(&opts.candidateType, "type", "", "candidate type")
	cmd.Flags().IntVar(&opts.maxAgeMinutes, "max-age", -1, "staleness threshold in minutes (default: retention.max_age_minutes)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "sweep every configured partition")
	cmd.MarkFlagsMutuallyExclusive("all", "surface")
	cmd.MarkFlagsMutuallyExclusive("all", "type")

	return cmd
}

func (o *sweepOptions) partition() (prospect.Partition, error) {
	if o.surface == "" {
		return prospect.Partition{}, cli.NewFlagError("surface", "is required unless --all is set")
	}
	if o.candidateType == "" {
		return prospect.Partition{}, cli.NewFlagError("type", "is required unless --all is set")
	}
	p := prospect.Partition{SurfaceGUID: o.surface, CandidateType: prospect.CandidateType(o.candidateType)}
	if !p.CandidateType.Valid() {
		return prospect.Partition{}, cli.NewFlagError("type", fmt.Sprintf("unknown candidate type %q", o.candidateType))
	}
	return p, nil
}

func runSweep(cmd *cobra.Command, root *rootOptions, opts *sweepOptions) error {
	formatter, format, err := root.formatter()
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return cli.NewFlagError("output", "csv is not supported by sweep")
	}

	var partition prospect.Partition
	if !opts.all {
		if partition, err = opts.partition(); err != nil {
			return err
		}
	}

	cfg, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}
	maxAge := cfg.Retention.MaxAgeMinutes
	if opts.maxAgeMinutes >= 0 {
		maxAge = opts.maxAgeMinutes
	}

	a, err := newApp(cfg, prometheus.NewRegistry())
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer a.Close()

	ctx := cmd.Context()

	if opts.all {
		rc := retentionConfig(cfg)
		rc.MaxAgeMinutes = maxAge
		summary := retention.NewScheduler(a.sweeper, rc).RunOnce(ctx)

		if err := formatter.FormatTo(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
		if len(summary.FailedIDs) > 0 || len(summary.FailedPartitions) > 0 {
			return cli.NewPartialError("sweep", fmt.Errorf("%d ids and %d partitions failed",
				len(summary.FailedIDs), len(summary.FailedPartitions)))
		}
		return nil
	}

	result, err := a.sweeper.Sweep(ctx, partition.SurfaceGUID, partition.CandidateType, time.Now(), maxAge)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	if err := formatter.FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if len(result.FailedIDs) > 0 {
		return cli.NewPartialError("sweep", fmt.Errorf("%d stale ids could not be deleted", len(result.FailedIDs)))
	}
	return nil
}
