package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // every scenario passed
	ExitFailure      = 1 // a scenario failed or did not validate
	ExitCommandError = 2 // bad arguments, missing paths, unreadable run database
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeInvalid     = "E201" // Scenario failed to parse or validate
	ErrCodeTestFailed  = "E202" // One or more scenarios failed
	ErrCodeStore       = "E301" // Run database error
	ErrCodeRunNotFound = "E302" // No recorded run with that id
)

// ExitError carries the process exit code a command wants main to use.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // what went wrong, in scenario or run terms
	Err     error  // cause, if any
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure when
// err is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope every command writes with --format json.
// A batch with failing scenarios carries both Data (the per-scenario
// outcomes) and Error.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes why a scenario batch, validation or run lookup did
// not succeed.
type CLIError struct {
	Code    string `json:"code"` // an ErrCode constant
	Message string `json:"message"`
	Details any    `json:"details,omitempty"` // offending paths or run ids
}

// OutputFormatter writes command results as text or as a CLIResponse.
// Diagnostics go to ErrWriter so they never interleave with JSON on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // nil means Writer
	Verbose   bool
}

// newFormatter builds a formatter from the root flags, with diagnostics on
// the command's stderr.
func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// Success writes data as an ok response, or prints it as text.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return writeResponse(f.Writer, CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes a failure with no result payload.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return writeResponse(f.Writer, CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Report writes a JSON response holding data and, when failure is
// non-nil, marks it as an error. Used for batches where some scenarios
// failed and the outcomes still need to be reported.
func (f *OutputFormatter) Report(data any, failure *CLIError) error {
	resp := CLIResponse{Status: "ok", Data: data}
	if failure != nil {
		resp.Status = "error"
		resp.Error = failure
	}
	return writeResponse(f.Writer, resp)
}

// VerboseLog writes a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns where diagnostics go.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func writeResponse(w io.Writer, resp CLIResponse) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
