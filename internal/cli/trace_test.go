package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamtest/internal/store"
	"github.com/roach88/streamtest/internal/testutil"
)

// seedStore records a passing and a failing run and returns the db path.
func seedStore(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(dbPath, store.WithIDGenerator(testutil.NewFixedIDGenerator("")))
	require.NoError(t, err)
	defer st.Close()

	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	_, err = st.WriteRun(t.Context(), store.Run{
		Scenario:     "tick",
		Source:       "scenarios/tick.yaml",
		Pass:         true,
		FinalClockMs: 2000,
		RecordedAt:   at,
	}, []store.Event{
		{Seq: 1, Type: "scheduled", Label: "tick", AtMs: 0, DueMs: 1000},
		{Seq: 2, Type: "fired", Label: "tick", AtMs: 1000, DueMs: 1000},
	})
	require.NoError(t, err)

	_, err = st.WriteRun(t.Context(), store.Run{
		Scenario:     "watchdog",
		Source:       "scenarios/watchdog.yaml",
		FinalClockMs: 3000,
		Pending:      1,
		Errors:       []string{"Assertion failed: trace_contains"},
		RecordedAt:   at.Add(time.Minute),
	}, []store.Event{
		{Seq: 1, Type: "scheduled", Label: "watchdog", AtMs: 0, DueMs: 2000},
		{Seq: 2, Type: "scheduled", Label: "beat", AtMs: 0, DueMs: 1000},
		{Seq: 3, Type: "fired", Label: "beat", AtMs: 1000, DueMs: 1000},
		{Seq: 4, Type: "cancel_noop", Label: "beat", AtMs: 1000, DueMs: 1000},
		{Seq: 5, Type: "cancelled", Label: "watchdog", AtMs: 1500, DueMs: 2000},
	})
	require.NoError(t, err)
	return dbPath
}

func TestTraceCommandRequiresDB(t *testing.T) {
	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}

func TestTraceCommandListRuns(t *testing.T) {
	dbPath := seedStore(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)

	lines := splitLines(out)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "run-000002")
	assert.Contains(t, lines[0], "FAIL")
	assert.Contains(t, lines[0], "watchdog")
	assert.Contains(t, lines[1], "run-000001")
	assert.Contains(t, lines[1], "PASS")
	assert.Contains(t, lines[1], "clock 2s")
}

func TestTraceCommandListLimitJSON(t *testing.T) {
	dbPath := seedStore(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--limit", "1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "watchdog", resp.Data[0].Scenario)
}

func TestTraceCommandListEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded runs.")
}

func TestTraceCommandShowRun(t *testing.T) {
	dbPath := seedStore(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "run-000002")
	require.NoError(t, err)

	assert.Contains(t, out, "Trace for Run: run-000002")
	assert.Contains(t, out, "Scenario: watchdog (scenarios/watchdog.yaml)")
	assert.Contains(t, out, "Status: FAIL")
	assert.Contains(t, out, "Final Clock: 3s, 1 pending")
	assert.Contains(t, out, "[5] cancelled")
	assert.Contains(t, out, "@1.5s due 2s")
	assert.Contains(t, out, "=== Errors ===")
	assert.Contains(t, out, "Total Events: 5")
	assert.Contains(t, out, "No-ops:       1")
}

func TestTraceCommandLabelFilterJSON(t *testing.T) {
	dbPath := seedStore(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--run", "run-000002", "--label", "beat")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "run-000002", resp.Data.Run.ID)
	require.Len(t, resp.Data.Timeline, 3)
	for _, e := range resp.Data.Timeline {
		assert.Equal(t, "beat", e.Label)
	}
	assert.Equal(t, TraceStats{TotalEvents: 3, Scheduled: 1, Fired: 1, CancelNoops: 1}, resp.Data.Stats)
}

func TestTraceCommandRunNotFound(t *testing.T) {
	dbPath := seedStore(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrRunNotFound)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRunNotFound, resp.Error.Code)
}

func TestFilterTimeline(t *testing.T) {
	events := []store.Event{
		{Seq: 1, Label: "a"},
		{Seq: 2, Label: "b"},
		{Seq: 3, Label: "a"},
	}

	assert.Equal(t, events, filterTimeline(events, ""))
	assert.Equal(t, []store.Event{{Seq: 1, Label: "a"}, {Seq: 3, Label: "a"}}, filterTimeline(events, "a"))
	assert.Equal(t, []store.Event{}, filterTimeline(events, "zzz"))
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestTraceCommandScenarioFilter(t *testing.T) {
	dbPath := seedStore(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--scenario", "tick")
	require.NoError(t, err)

	lines := splitLines(out)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "run-000001")
	assert.Contains(t, lines[0], "  -  ", "runs without a digest show a dash")
}
