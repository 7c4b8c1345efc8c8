package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/streamtest/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
	Parallel int    // overrides the config's parallelism when > 0
	Database string
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario conformance tests",
		Long: `Run every scenario under a directory and check its assertions.

When golden/<name>.golden exists next to a scenario, the trace must also
match it byte for byte. Golden files hold canonical JSON.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  streamtest test ./scenarios
  streamtest test ./scenarios --filter "reminder*"
  streamtest test ./scenarios --update
  streamtest test ./scenarios --parallel 8 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "scenarios to run concurrently (default from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	info, err := os.Stat(scenariosDir)
	if err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if opts.Parallel > 0 {
		cfg.Parallelism = opts.Parallel
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
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

	batch, err := harness.RunAll(ctx, scenarioFiles, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "test run interrupted", err)
	}
	if _, err := recordOutcomes(ctx, st, batch.Outcomes); err != nil {
		return WrapExitError(ExitCommandError, "failed to record runs", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(batch.Outcomes)),
		Total:     len(batch.Outcomes),
	}
	for _, o := range batch.Outcomes {
		scenResult := checkOutcome(o, opts.Update)
		cfg.Logger.Debug("scenario checked", "path", o.Path, "pass", scenResult.Pass)
		if opts.Format != "json" {
			writeScenarioText(cmd, scenResult, opts.Update)
		}
		result.Scenarios = append(result.Scenarios, scenResult)
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles finds all scenario files under dir whose base name,
// without extension, matches filter.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	files, err := harness.FindScenarios(dir)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return files, nil
	}

	matched := files[:0]
	for _, path := range files {
		base := filepath.Base(path)
		ok, err := filepath.Match(filter, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if ok {
			matched = append(matched, path)
		}
	}
	return matched, nil
}

// checkOutcome turns a batch outcome into a test verdict, comparing
// against (or regenerating) the scenario's golden file.
func checkOutcome(o harness.Outcome, update bool) ScenarioResult {
	name := scenarioName(o.Path)
	if o.Error != "" {
		return ScenarioResult{Name: name, Path: o.Path, Errors: []string{o.Error}}
	}
	res := ScenarioResult{Name: o.Result.Scenario, Path: o.Path, Pass: o.Result.Pass, Errors: o.Result.Errors}

	goldenPath := goldenFilePath(o.Path)
	if update {
		if err := updateGoldenFile(o.Result, goldenPath); err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, fmt.Sprintf("failed to update golden file: %v", err))
		}
		return res
	}

	match, err := compareWithGolden(o.Result, goldenPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Assertions only.
	case err != nil:
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf("golden comparison failed: %v", err))
	case !match:
		res.Pass = false
		res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return res
}

func scenarioName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenarioName(scenarioFile)+".golden")
}

// updateGoldenFile writes the current trace as the golden file.
func updateGoldenFile(result *harness.Result, goldenPath string) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}

	data, err := harness.MarshalSnapshot(result)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	if err := os.WriteFile(goldenPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden compares the result trace against the golden file.
// A missing golden file is reported as an os.ErrNotExist error.
func compareWithGolden(result *harness.Result, goldenPath string) (bool, error) {
	goldenData, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, err
	}

	currentData, err := harness.MarshalSnapshot(result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal current trace: %w", err)
	}

	return bytes.Equal(goldenData, currentData), nil
}

func writeScenarioText(cmd *cobra.Command, res ScenarioResult, update bool) {
	w := cmd.OutOrStdout()
	if !res.Pass {
		fmt.Fprintf(w, "✗ %s\n", res.Name)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	if update {
		fmt.Fprintf(w, "✓ %s (golden updated)\n", res.Name)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", res.Name)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	var failure *CLIError
	if result.Failed > 0 {
		failure = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	if err := formatter.Report(result, failure); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
