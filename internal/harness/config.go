package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/streamtest/internal/vclock"
)

// DefaultFlushBudget is how far a virtual-time computation's clock is
// advanced before its outcome is read.
const DefaultFlushBudget = 72 * time.Hour

// DefaultMaxSteps caps the clock actions one advance may run.
const DefaultMaxSteps = 1_000_000

// DefaultTimeout bounds how long a test waits on a real-time outcome.
const DefaultTimeout = 30 * time.Second

// Config controls how effects and scenarios are executed.
type Config struct {
	// FlushBudget is the logical time a virtual-time computation gets to
	// resolve. Work scheduled beyond it is never run.
	FlushBudget time.Duration

	// Timeout bounds the wall-clock wait for an outcome. A fiber parked on
	// the virtual clock does not observe it; virtual-time work is bounded
	// by FlushBudget and MaxSteps instead.
	Timeout time.Duration

	// Epoch is the instant every virtual clock starts at.
	Epoch time.Time

	// MaxSteps caps the clock actions run by one advance, catching work
	// that keeps rescheduling itself without letting time pass. Zero
	// means no cap.
	MaxSteps int

	// Parallelism caps concurrent scenario runs in RunAll. Zero or less
	// means one.
	Parallelism int

	// LogLevel is the slog level name used by the CLI ("debug", "info",
	// "warn", "error").
	LogLevel string

	// Logger receives harness diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		FlushBudget: DefaultFlushBudget,
		Timeout:     DefaultTimeout,
		Epoch:       vclock.Epoch,
		MaxSteps:    DefaultMaxSteps,
		Parallelism: 1,
		LogLevel:    "info",
	}
}

// configFile is the on-disk shape of Config.
type configFile struct {
	FlushBudget *Duration  `yaml:"flush_budget"`
	Timeout     *Duration  `yaml:"timeout"`
	Epoch       *time.Time `yaml:"epoch"`
	MaxSteps    *int       `yaml:"max_steps"`
	Parallelism *int       `yaml:"parallelism"`
	LogLevel    *string    `yaml:"log_level"`
}

// LoadConfig reads a YAML config file. Keys missing from the file keep
// their DefaultConfig values; unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML config data on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	var file configFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if file.FlushBudget != nil {
		cfg.FlushBudget = file.FlushBudget.Std()
	}
	if file.Timeout != nil {
		cfg.Timeout = file.Timeout.Std()
	}
	if file.Epoch != nil {
		cfg.Epoch = file.Epoch.UTC()
	}
	if file.MaxSteps != nil {
		cfg.MaxSteps = *file.MaxSteps
	}
	if file.Parallelism != nil {
		cfg.Parallelism = *file.Parallelism
	}
	if file.LogLevel != nil {
		cfg.LogLevel = *file.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration values the harness cannot run with.
func (c Config) Validate() error {
	if c.FlushBudget < 0 {
		return fmt.Errorf("flush_budget must not be negative, got %s", c.FlushBudget)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", name, err)
	}
	return level, nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
