// Package control exposes the host-facing HTTP API: cache activation and
// clearing, cache size reporting, sync triggers by tag, queue inspection,
// health, and prometheus metrics.
package control
