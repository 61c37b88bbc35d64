package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Pocket/content-monorepo-sub003/pkg/cli"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/ingest"
	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/logging"
)

type ingestOptions struct {
	file     string
	progress bool
}

// ingestResult is the outcome of one replayed message.
type ingestResult struct {
	Index   int             `json:"index"`
	Summary *ingest.Summary `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ingestReport is the output of the ingest command.
type ingestReport struct {
	Results []ingestResult `json:"results"`
	Tally   cli.Tally      `json:"tally"`
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	opts := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Process candidate batch messages from a file",
		Long: `Process one or more candidate batch messages. The input holds JSON
messages one after another, either a single document or newline-delimited.
Each message is handled exactly as if it had been posted to /v1/batches: the
partitions it touches are swept, then its candidates are inserted.

Examples:
  # Replay a dead-lettered batch
  prospects ingest --file batch.json

  # Read messages from stdin
  cat batches.ndjson | prospects ingest --file -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "message file, or - for stdin")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "report progress on stderr")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// splitMessages separates concatenated JSON documents without decoding them,
// so that each one can be validated on its own.
func splitMessages(r io.Reader) ([]json.RawMessage, error) {
	dec := json.NewDecoder(r)

	var raws []json.RawMessage
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, prospect.NewValidationError("message", fmt.Sprintf("message %d: invalid json: %v", len(raws), err))
		}
		raws = append(raws, raw)
	}
	if len(raws) == 0 {
		return nil, prospect.NewValidationError("message", "no messages in input")
	}
	return raws, nil
}

func runIngest(cmd *cobra.Command, root *rootOptions, opts *ingestOptions) error {
	formatter, format, err := root.formatter()
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return cli.NewFlagError("output", "csv is not supported by ingest")
	}

	in := cmd.InOrStdin()
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return cli.NewFlagError("file", err.Error())
		}
		defer f.Close()
		in = f
	}

	raws, err := splitMessages(in)
	if err != nil {
		return err
	}

	cfg, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, prometheus.NewRegistry())
	if err != nil {
		return cli.NewCommandError("ingest", err)
	}
	defer a.Close()

	progressOut := io.Discard
	if opts.progress {
		progressOut = cmd.ErrOrStderr()
	}
	progress := cli.NewProgressReporter(progressOut)
	progress.Start(len(raws))

	report := ingestReport{Results: make([]ingestResult, 0, len(raws))}
	var lastErr error
	for i, raw := range raws {
		result := ingestResult{Index: i}

		msg, err := ingest.DecodeMessage(bytes.NewReader(raw))
		if err == nil {
			ctx := logging.WithMessageID(cmd.Context(), msg.ID)
			result.Summary, err = a.processor.Process(ctx, msg)
		}
		if err != nil {
			result.Summary = nil
			result.Error = err.Error()
			lastErr = err
		}

		progress.Advance(err == nil)
		report.Results = append(report.Results, result)
	}
	report.Tally = progress.Finish()

	if err := writeIngestReport(cmd.OutOrStdout(), formatter, format, report); err != nil {
		return err
	}

	switch {
	case report.Tally.Failed == 0:
		return nil
	case report.Tally.Succeeded == 0:
		return cli.NewCommandError("ingest", lastErr)
	default:
		return cli.NewPartialError("ingest", fmt.Errorf("%d of %d messages failed", report.Tally.Failed, report.Tally.Total))
	}
}

func writeIngestReport(w io.Writer, formatter cli.Formatter, format cli.OutputFormat, report ingestReport) error {
	if format != cli.FormatText {
		return formatter.FormatTo(w, report)
	}

	for _, r := range report.Results {
		var err error
		if r.Summary != nil {
			_, err = fmt.Fprintf(w, "%s inserted=%d evicted=%d partitions=%d\n",
				r.Summary.MessageID, r.Summary.Inserted, r.Summary.Evicted, len(r.Summary.Partitions))
		} else {
			_, err = fmt.Fprintf(w, "message %d failed: %s\n", r.Index, r.Error)
		}
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d messages, %d succeeded, %d failed\n",
		report.Tally.Total, report.Tally.Succeeded, report.Tally.Failed)
	return err
}
