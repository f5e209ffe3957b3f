// Package store provides SQLite-backed durable storage for the score ledger.
//
// The store holds three append-mostly tables:
//   - Sessions: issued play sessions, consumed at most once
//   - Inputs: the per-session input journal used for replay
//   - Receipts: accepted scores, at most one per session
//
// # Critical Patterns
//
// Exactly-once redemption
//   - RedeemSession flips consumed_at and inserts the receipt in one
//     transaction; a second redeem for the same session is a no-op
//   - receipts.session_id is UNIQUE as a second line
//
// Logical ordering
//   - Receipts carry a seq assigned at redeem time; journal rows carry the
//     engine's seq
//   - Ordered queries use ORDER BY seq ASC, id COLLATE BINARY ASC, never
//     wall-clock timestamps
//
// Idempotent writes
//   - WriteSession and AppendInput use ON CONFLICT DO NOTHING, so retried
//     writes after a crash are harmless
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Receipt IDs are content-addressed via internal/canonical.
package store
