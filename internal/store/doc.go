// Package store records dispatch traces in SQLite.
//
// A trace is a session (one dispatcher run, identified by a UUIDv7) and the
// ordered dispatches observed during it:
//   - Sessions: label, configuration hash and creation order
//   - Dispatches: routine, route, result, the command message as the engine
//     returned it, diagnostics and fault
//
// # Ordering
//
// Every dispatch carries a seq from a logical clock, never a timestamp.
// Reads order by seq so two traces of the same run compare equal.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Dispatches must belong to a session
package store
