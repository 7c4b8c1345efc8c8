package harness

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamtest/internal/vclock"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 72*time.Hour, cfg.FlushBudget)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.True(t, cfg.Epoch.Equal(vclock.Epoch))
	assert.Equal(t, 1, cfg.Parallelism)
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
	assert.NoError(t, cfg.Validate())
}

func TestParseConfig_Overrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
flush_budget: 5d
timeout: 10s
epoch: 2030-06-01T00:00:00Z
parallelism: 4
max_steps: 0
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 120*time.Hour, cfg.FlushBudget)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.True(t, cfg.Epoch.Equal(time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, 0, cfg.MaxSteps, "zero disables the cap")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseConfig_PartialKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("flush_budget: 1h\n"))
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.FlushBudget)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFlushBudget, cfg.FlushBudget)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "flush_budgt: 1h\n",
		"bad duration":   "flush_budget: whenever\n",
		"zero timeout":   "timeout: 0\n",
		"bad log level":  "log_level: chatty\n",
		"negative steps": "max_steps: -1\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flush_budget: 2d\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.FlushBudget)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("")
	assert.Error(t, err)
}

func TestConfigTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want time.Duration
	}{
		{"configured", Config{Timeout: 5 * time.Second}, 5 * time.Second},
		{"zero falls back", Config{}, DefaultTimeout},
		{"negative falls back", Config{Timeout: -time.Second}, DefaultTimeout},
		{"negative steps ignored", Config{Timeout: time.Second, MaxSteps: -1}, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.timeout())
		})
	}
}
