package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/streamtest/internal/harness"
)

// ValidationError is a scenario file that failed to load.
type ValidationError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenarios-dir>",
		Short: "Validate scenarios without running them",
		Long: `Parse and validate scenario files without running them.

YAML scenarios are checked for unknown fields and structural errors. CUE
scenarios are additionally unified with the scenario schema. Faster than
test for authoring feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	files, err := harness.FindScenarios(dir)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return outputValidateError(formatter, ErrCodeNotFound, err.Error())
		}
		return outputValidateError(formatter, ErrCodeScanError, err.Error())
	}

	formatter.VerboseLog("Found %d scenario file(s) in %s", len(files), dir)

	result := ValidationResult{Valid: true, Files: len(files)}
	for _, path := range files {
		formatter.VerboseLog("Validating %s", path)
		if _, err := harness.LoadScenario(path); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Path:    path,
				Code:    ErrCodeInvalid,
				Message: err.Error(),
			})
		}
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d scenario(s) valid\n", result.Files)
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every invalid scenario.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		failure := &CLIError{Code: errs[0].Code, Message: errs[0].Message}
		if err := formatter.Report(result, failure); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintln(formatter.Writer, err.Path)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
