package cli

import (
	"context"
	"time"

	"github.com/roach88/streamtest/internal/harness"
	"github.com/roach88/streamtest/internal/store"
)

// recordOutcomes stores every outcome that produced a result and returns
// the run ids keyed by scenario path. A nil store records nothing.
func recordOutcomes(ctx context.Context, st *store.Store, outcomes []harness.Outcome) (map[string]string, error) {
	ids := make(map[string]string)
	if st == nil {
		return ids, nil
	}
	now := time.Now().UTC()
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		run, err := toStoreRun(o.Path, o.Result, now)
		if err != nil {
			return ids, err
		}
		id, err := st.WriteRun(ctx, run, toStoreTrace(o.Result.Trace))
		if err != nil {
			return ids, err
		}
		ids[o.Path] = id
	}
	return ids, nil
}

func toStoreRun(path string, r *harness.Result, at time.Time) (store.Run, error) {
	digest, err := harness.TraceDigest(r)
	if err != nil {
		return store.Run{}, err
	}
	return store.Run{
		Scenario:     r.Scenario,
		Source:       path,
		Pass:         r.Pass,
		FinalClockMs: r.FinalClockMs,
		Pending:      r.Pending,
		Errors:       r.Errors,
		Digest:       digest,
		RecordedAt:   at,
	}, nil
}

func toStoreTrace(trace []harness.TraceEvent) []store.Event {
	events := make([]store.Event, len(trace))
	for i, e := range trace {
		events[i] = store.Event{
			Seq:   e.Seq,
			Type:  e.Type,
			Label: e.Label,
			AtMs:  e.AtMs,
			DueMs: e.DueMs,
		}
	}
	return events
}

// openStore opens the run database when path is set.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// formatMs renders logical milliseconds as a harness duration ("2d12h0m0s").
func formatMs(ms int64) string {
	return harness.Duration(time.Duration(ms) * time.Millisecond).String()
}
