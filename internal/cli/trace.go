package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/streamtest/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - show one run's trace
	Scenario string // optional - list only this scenario's runs
	Label    string // optional - filter events to one timer label
	Limit    int
}

// TraceResult holds one recorded run and its timeline.
type TraceResult struct {
	Run      store.Run     `json:"run"`
	Timeline []store.Event `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats counts timeline events by type.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Scheduled   int `json:"scheduled"`
	Fired       int `json:"fired"`
	Cancelled   int `json:"cancelled"`
	CancelNoops int `json:"cancel_noops"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
		Long: `Inspect scenario runs recorded with --db.

Without --run, lists the most recent runs with their trace digests;
runs of one scenario with equal digests produced identical traces. With
--run, prints that run's trace timeline and a summary of its events.

Examples:
  streamtest trace --db ./runs.db
  streamtest trace --db ./runs.db --scenario reminder
  streamtest trace --db ./runs.db --run 0192f0c1-...
  streamtest trace --db ./runs.db --run 0192f0c1-... --label remind --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only list runs of this scenario")
	cmd.Flags().StringVar(&opts.Label, "label", "", "only show events for this timer label")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of runs to list")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(cmd, opts.RootOptions)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		var runs []store.Run
		if opts.Scenario != "" {
			runs, err = st.ListScenarioRuns(ctx, opts.Scenario, opts.Limit)
		} else {
			runs, err = st.ListRuns(ctx, opts.Limit)
		}
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return outputRunList(cmd, formatter, runs)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeRunNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadTrace(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	result := TraceResult{Run: run, Timeline: filterTimeline(events, opts.Label)}
	result.Stats = traceStats(result.Timeline)

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputTraceText(cmd, result)
}

// filterTimeline keeps events for label. An empty label keeps everything.
func filterTimeline(events []store.Event, label string) []store.Event {
	if label == "" {
		return events
	}
	filtered := []store.Event{}
	for _, e := range events {
		if e.Label == label {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func traceStats(events []store.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, e := range events {
		switch e.Type {
		case "scheduled":
			stats.Scheduled++
		case "fired":
			stats.Fired++
		case "cancelled":
			stats.Cancelled++
		case "cancel_noop":
			stats.CancelNoops++
		}
	}
	return stats
}

func outputRunList(cmd *cobra.Command, formatter *OutputFormatter, runs []store.Run) error {
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-4s  %-24s  clock %-10s  %-12s  %s\n",
			r.ID, passLabel(r.Pass), r.Scenario, formatMs(r.FinalClockMs),
			shortDigest(r.Digest), r.RecordedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()
	run := result.Run

	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Scenario: %s (%s)\n", run.Scenario, run.Source)
	fmt.Fprintf(w, "Status: %s\n", passLabel(run.Pass))
	fmt.Fprintf(w, "Final Clock: %s, %d pending\n", formatMs(run.FinalClockMs), run.Pending)
	if run.Digest != "" {
		fmt.Fprintf(w, "Digest: %s\n", run.Digest)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, e := range result.Timeline {
		writeEventText(w, e.Seq, e.Type, e.Label, e.AtMs, e.DueMs)
	}
	fmt.Fprintln(w)

	if len(run.Errors) > 0 {
		fmt.Fprintln(w, "=== Errors ===")
		for _, msg := range run.Errors {
			fmt.Fprintf(w, "  %s\n", msg)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Scheduled:    %d\n", result.Stats.Scheduled)
	fmt.Fprintf(w, "  Fired:        %d\n", result.Stats.Fired)
	fmt.Fprintf(w, "  Cancelled:    %d\n", result.Stats.Cancelled)
	fmt.Fprintf(w, "  No-ops:       %d\n", result.Stats.CancelNoops)

	return nil
}

// shortDigest keeps enough of a digest to tell runs apart by eye.
func shortDigest(digest string) string {
	if digest == "" {
		return "-"
	}
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
