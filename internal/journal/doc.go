// Package journal provides SQLite-backed durable storage for dispatched
// distributed object events.
//
// The journal is an append-only log with two tables:
//   - events: one row per dispatched event, keyed by the dispatcher's seq
//   - snapshots: the encoded state of each object when it was registered
//
// Events dispatched as members of one compound event share a batch id.
//
// # Ordering
//
// All ordering uses seq (a logical clock), never timestamps. Reads are
// ORDER BY seq ASC so replay applies events in dispatch order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package journal
