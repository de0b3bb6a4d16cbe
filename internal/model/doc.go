// Package model defines the core data structures shared across shelfmap.
//
// The central type is CategoryNode, a single category record in the
// discovered hierarchy. Nodes are linked to their parent via ParentID and
// carry a processing status that moves through a fixed lifecycle:
//
//	pending -> in_progress -> processed_leaf
//	                       -> processed_has_children
//	                       -> failed_permanent
//
// FrontierTask is the unit of work handed to crawl workers: one live task
// per node awaiting exploration. RunStats aggregates the outcome of a
// discovery run for reporting.
//
// Design decision: Model types are plain structs with no behavior beyond
// validation and serialization. All persistence and scheduling logic lives
// in the store and frontier packages, which keeps this package free of
// dependencies and usable from every layer.
package model
