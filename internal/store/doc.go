// Package store provides SQLite-backed storage for compiled survey designs
// and respondent navigation state.
//
// Designs are content-addressed: the compiled artifact is stored once per
// design hash, and every save of a survey adds a revision pointing at it.
// Responses hold the caller-side state a navigation step needs again
// (current index, mode, language and stored values), so a respondent can
// resume across process restarts.
//
// # Ordering
//
// Revisions and responses carry a seq INTEGER taken from a store-wide
// logical clock. Every listing orders by seq ASC, id ASC COLLATE BINARY;
// wall-clock timestamps are never stored.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Artifacts and values are stored as canonical JSON (see ir.MarshalCanonical)
// so equal content is byte-identical on disk.
package store
