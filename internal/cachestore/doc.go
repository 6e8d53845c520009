// Package cachestore keeps versioned named response caches in the shared
// database.
//
// Cache names carry the deploy generation as a prefix ({generation}-{role}).
// Activation after a deploy enumerates all names and purges those of
// foreign generations, so stale caches from a previous build cannot serve
// old assets. Entries are whole serialized responses; an entry that fails
// to decode is treated as a miss, never an error.
package cachestore
