// Package engine implements the reaction-to-role synchronization core.
//
// The engine maps reaction symbols on designated messages to grantable
// roles. It holds three pieces of state:
//
//   - BindingCache: (message, symbol) -> role, O(1) on the event hot path
//   - LinkRegistry: named groups of messages whose bound roles are
//     mutually exclusive, with the per-message exclusion set precomputed
//   - memberQueue: per-member pending intents plus a FIFO of member keys
//
// ARCHITECTURE:
//
// Single-Writer Mutation Loop:
// The external membership store exposes only read-full-set and
// replace-full-set. Two concurrent read-modify-write cycles on the same
// member would race and silently drop one side's change, so all role
// writes flow through one serializing worker goroutine (Run). Event
// handlers run concurrently with each other and with the worker; they
// only touch the queue, never the store.
//
// Coalescing:
// Rapid reactions on the same member merge into a single pending intent
// with last-writer-wins per role. A member that adds then removes a
// reaction before the worker drains the key produces at most one
// external write.
//
// Retry:
// Store failures (Forbidden or Transient) re-merge the attempted change
// into the member's intent and re-enqueue the key. A failure never
// drops a requested change and never blocks other members' progress.
//
// Rate limiting:
// The worker sleeps a fixed interval after every processed key, derived
// from the configured max-processed-per-second (0 disables throttling).
package engine
