// Package crawler orchestrates category discovery runs.
//
// A run starts from seed URLs, explores each category page through an
// explorer.Explorer, persists discovered children in the store, and
// feeds them back into the frontier until no live task remains. A
// bounded worker pool drains the frontier; per-retailer fairness and
// in-flight ceilings live in the frontier itself, so the pool stays a
// plain loop of claim, process, repeat.
//
// All failure handling is delegated to the backoff policy: transient
// failures requeue with exponential delay, anti-bot challenges requeue
// with a long fixed delay against a wall-clock budget, and permanent
// failures mark the node failed_permanent. Workers never sleep on a
// delay; a delayed task simply stays unclaimable until its NotBefore.
//
// Progress is checkpointed through a checkpoint.Manager so an
// interrupted run can resume without losing the frontier.
package crawler
