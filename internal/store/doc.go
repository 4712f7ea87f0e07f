// Package store implements an embedded key-value store made of two files:
// an append-only value log and an index snapshot.
//
// Files:
//   - Value log: raw serialized values, no header, no framing. An update
//     appends a new copy and leaves the old bytes behind as garbage.
//   - Index file: the complete key -> (offset, length) map, rewritten in
//     full on every Insert and Delete.
//
// Concurrency:
//   - Handles returned by Clone share one set of files and state.
//   - The value log is guarded by a mutex (reads and writes alike), the
//     index by a reader/writer lock, and offsets are reserved with an
//     atomic fetch-and-add.
//   - A panic while a lock is held poisons it; later calls fail with
//     ErrLockPoisoned.
//
// Compaction:
//   - GC copies live values into fresh files and swaps them in through a
//     marker file, so an interrupted swap is finished by the next Load.
//   - StartBackgroundGC runs GC when the garbage ratio crosses a threshold.
package store
