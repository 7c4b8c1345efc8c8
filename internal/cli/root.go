package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/streamtest/internal/harness"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the streamtest CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "streamtest",
		Short: "Deterministic virtual-time scenario runner",
		Long: `Run timer scenarios against a virtual clock.

Scenarios schedule labelled timers, advance logical time, and assert on
the resulting trace. Days of logical time pass in microseconds, and the
same scenario always produces the same trace.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to harness config file (YAML)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// loadConfig resolves the harness config for a command and attaches a
// logger writing to errOut. --verbose forces debug level.
func (o *RootOptions) loadConfig(errOut io.Writer) (harness.Config, error) {
	cfg := harness.DefaultConfig()
	if o.ConfigPath != "" {
		loaded, err := harness.LoadConfig(o.ConfigPath)
		if err != nil {
			return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}

	level, err := harness.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
	return cfg, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
