// Package checkpoint provides crash-safe snapshots of crawl progress.
//
// A snapshot captures every live frontier task, split into queued and
// in-flight sets. Category node statuses are durable in the store at
// write time, so the snapshot does not replicate them; it only needs
// enough to rebuild the frontier. On resume, in-flight tasks are
// re-enqueued as pending with their attempt counters preserved, because
// a claim held by a crashed process is assumed lost.
//
// Snapshot storage is pluggable behind the Store interface. The shipped
// FileStore writes JSON via temp-file-and-rename in the same directory,
// which is atomic with respect to process crash: a reader sees either
// the previous complete snapshot or the new one, never a torn write.
package checkpoint
