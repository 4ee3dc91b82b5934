// Package watcher re-verifies files as they change on disk.
//
// A fsnotify watcher covers the configured roots (recursively). Write
// and create events are debounced for a short settle window, then the
// affected paths are re-hashed and compared against the trust database.
// A verdict downgrade (most importantly a transition into mismatch)
// is logged immediately, which turns the trust database into a
// near-real-time integrity monitor instead of a scan-time snapshot.
//
// Key features:
//   - Recursive watch registration with automatic pickup of new directories
//   - Per-path debounce (temp files settle before hashing)
//   - Daemon mode support with PID file management
//   - Graceful shutdown with SIGTERM/SIGINT handling
package watcher
