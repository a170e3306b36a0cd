// Package memory provides the bot's durable key/value store.
//
// Every stateful component (message queue, event sync, jam settings) keeps its
// state under a string key. Two drivers are available:
//   - "file": one JSON file per key, guarded by a per-key advisory file lock
//   - "sqlite": a SQLite database file (optional build tag)
//
// Reads and writes are best-effort: a lock acquisition timeout degrades to
// "absent" (reads) or a dropped write, with a warning log. Lock contention is
// never surfaced as an error to callers.
package memory
