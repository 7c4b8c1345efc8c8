package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/streamtest/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Outcomes []RunOutcome `json:"outcomes"`
	Passed   int          `json:"passed"`
	Failed   int          `json:"failed"`
	Errored  int          `json:"errored"`
}

// RunOutcome is one scenario file's result, plus its stored run id when
// --db is set.
type RunOutcome struct {
	harness.Outcome
	RunID string `json:"run_id,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>...",
		Short: "Run scenarios and print their traces",
		Long: `Run one or more scenario files (or directories of them) against a
fresh virtual clock each, and print the resulting trace.

With --db, every run and its trace is recorded in a SQLite database for
later inspection with the trace command.

Examples:
  streamtest run ./scenarios/reminder.yaml
  streamtest run ./scenarios --db ./runs.db
  streamtest run ./scenarios/reminder.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")

	return cmd
}

func runScenarios(opts *RunOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var paths []string
	for _, arg := range args {
		found, err := harness.FindScenarios(arg)
		if err != nil {
			var notFound *harness.ScenarioNotFoundError
			if errors.As(err, &notFound) {
				return WrapExitError(ExitCommandError, "scenario path not found", err)
			}
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		paths = append(paths, found...)
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	batch, err := harness.RunAll(ctx, paths, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "run interrupted", err)
	}

	ids, err := recordOutcomes(ctx, st, batch.Outcomes)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}
	cfg.Logger.Debug("scenarios complete", "total", batch.Total, "passed", batch.Passed, "recorded", len(ids))

	result := RunResult{
		Outcomes: make([]RunOutcome, len(batch.Outcomes)),
		Passed:   batch.Passed,
		Failed:   batch.Failed,
		Errored:  batch.Errored,
	}
	for i, o := range batch.Outcomes {
		result.Outcomes[i] = RunOutcome{Outcome: o, RunID: ids[o.Path]}
	}

	if opts.Format == "json" {
		formatter := newFormatter(cmd, opts.RootOptions)
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, o := range result.Outcomes {
			writeOutcomeText(w, o, opts.Verbose)
		}
	}

	if result.Failed+result.Errored > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) did not pass", result.Failed+result.Errored, batch.Total))
	}
	return nil
}

func writeOutcomeText(w io.Writer, o RunOutcome, verbose bool) {
	if o.Error != "" {
		fmt.Fprintf(w, "✗ %s\n", o.Path)
		fmt.Fprintf(w, "  %s\n", o.Error)
		return
	}

	r := o.Result
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (clock %s, %d pending)\n", mark, r.Scenario, formatMs(r.FinalClockMs), r.Pending)
	if o.RunID != "" {
		fmt.Fprintf(w, "  run: %s\n", o.RunID)
	}
	if verbose || !r.Pass {
		for _, e := range r.Trace {
			writeEventText(w, e.Seq, e.Type, e.Label, e.AtMs, e.DueMs)
		}
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "  %s\n", msg)
	}
}

// writeEventText prints one trace line.
func writeEventText(w io.Writer, seq int64, typ, label string, atMs, dueMs int64) {
	fmt.Fprintf(w, "  [%d] %-11s %-16s @%s", seq, typ, label, formatMs(atMs))
	if typ == harness.EventScheduled || typ == harness.EventCancelled {
		fmt.Fprintf(w, " due %s", formatMs(dueMs))
	}
	fmt.Fprintln(w)
}

// signalContext cancels on SIGINT/SIGTERM. A nil parent means Background.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
