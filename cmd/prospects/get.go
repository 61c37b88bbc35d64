package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Pocket/content-monorepo-sub003/pkg/cli"
)

func newGetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one stored candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, _, err := root.formatter()
			if err != nil {
				return err
			}

			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, prometheus.NewRegistry())
			if err != nil {
				return cli.NewCommandError("get", err)
			}
			defer a.Close()

			record, found, err := a.store.GetByID(cmd.Context(), args[0])
			if err != nil {
				return cli.NewCommandError("get", err)
			}
			if !found {
				return cli.NewCommandError("get", fmt.Errorf("candidate %s not found", args[0]))
			}

			return formatter.FormatTo(cmd.OutOrStdout(), record)
		},
	}
}
