// Package frontier holds the set of pending category-exploration tasks.
//
// The frontier guarantees the crawl's two scheduling invariants:
//
//  1. At most one live task per category node. Enqueue is an idempotent
//     no-op when a task with the same (retailerID, URL) key is already
//     live, whether queued, delayed, or claimed.
//  2. No task is claimed before its NotBefore timestamp. Retry and
//     challenge delays are expressed purely through NotBefore; nothing
//     ever blocks a goroutine waiting for a delay.
//
// Claiming is round-robin across retailers so a slow or bot-walled
// retailer cannot starve the others, and per-retailer in-flight ceilings
// bound how many workers any single site occupies.
//
// The frontier is in-memory; durability comes from the checkpoint
// package, which snapshots all live tasks and restores them on resume.
package frontier
