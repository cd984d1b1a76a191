// Package snapshot holds the current world-state snapshot and a bounded
// history of its predecessors.
//
// # Invariants
//
//   - Versions strictly increase across pushes (ErrStaleVersion otherwise)
//   - A stored snapshot is a private deep copy and is never mutated
//   - History is a ring buffer; the oldest entry is evicted first
//
// Readers pin a consistent pair with Pair or Get so a cycle never compares
// against a snapshot replaced concurrently.
package snapshot
