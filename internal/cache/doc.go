// Package cache defines the disk-backed content store that maps canonical refs
// to files under <RootDirectory>/<Name>/<path>[.<ext>]. Writes go through a
// temp file + rename so readers never observe a partially written artifact,
// and a per-ref lock serialises concurrent writers inside one process.
// Reads honour an optional max age: an entry older than the limit is reported
// as ErrNotFound so callers treat stale content exactly like a miss.
package cache
