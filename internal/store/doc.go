// Package store provides SQLite-backed storage for scenario runs.
//
// A run is one execution of a scenario: its outcome, its final virtual
// clock and the full trace. Runs are append-only; a run id is written at
// most once.
//
// # Tables
//
//   - runs: one row per run (id, scenario, source, pass, final clock,
//     pending actions, errors as JSON, recorded_at)
//   - trace_events: the run's trace, keyed by (run_id, seq)
//
// Trace reads are ordered by seq, which is the order events happened on
// the virtual clock. recorded_at is wall time and is only informational.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Run ids are UUIDv7 by default, so they sort by creation time.
package store
