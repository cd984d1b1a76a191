// Package journal provides SQLite-backed durable storage for completed
// cycles and the notifications they delivered.
//
// The journal is append-only and write-idempotent:
//   - cycles are keyed by (run_id, cycle)
//   - notifications are keyed by their deterministic id
//
// Re-recording a cycle is a no-op (ON CONFLICT DO NOTHING). The journal is
// an audit log for operators; it is never read back into the pipeline, so
// it is not a replay mechanism.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package journal
