// Package pebblestore wraps a single Pebble database shared by the durable
// operation queue and the response caches.
//
// The wrapper owns the fsync policy (always, interval group-commit, or
// never), exposes batch commit for multi-key atomic updates, and offers
// prefix iteration and prefix deletion helpers on top of raw Pebble
// iterators. A MetricsHook seam lets callers observe read/write/commit
// latencies without the storage layer depending on any metrics library.
package pebblestore
