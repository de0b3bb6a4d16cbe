package model

import "time"

// FrontierTask is one unit of discovery work: a category node awaiting
// exploration. At most one live task exists per node at any time; the
// frontier enforces this with a dedup key of (RetailerID, URL).
//
// Design decision: The task carries RetailerID, URL, and Depth redundantly
// with the node record so that the frontier can schedule fairly across
// retailers and checkpoints can be restored without store lookups.
type FrontierTask struct {
	// NodeID is the category node this task explores.
	NodeID int64 `json:"node_id"`

	// RetailerID is the site the node belongs to, used for per-retailer
	// fairness and concurrency limits.
	RetailerID string `json:"retailer_id"`

	// URL is the node's canonical URL, part of the dedup key.
	URL string `json:"url"`

	// Depth is the node's depth, used for the depth ceiling check.
	Depth int `json:"depth"`

	// Attempt counts exploration attempts. Challenge requeues do not
	// increment it.
	Attempt int `json:"attempt"`

	// EnqueuedAt is when the task first entered the frontier.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// NotBefore is the earliest time a worker may claim the task.
	// All backoff and challenge-wait scheduling is expressed through
	// this field; no component blocks waiting for a delay to elapse.
	NotBefore time.Time `json:"not_before"`

	// FirstChallengeAt records when the node first hit an anti-bot
	// challenge, nil if it never has. The challenge wall-clock budget is
	// measured from this point.
	FirstChallengeAt *time.Time `json:"first_challenge_at,omitempty"`
}

// Key returns the frontier dedup key for the task.
func (t *FrontierTask) Key() string {
	return t.RetailerID + "\x00" + t.URL
}

// Ready reports whether the task may be claimed at the given time.
func (t *FrontierTask) Ready(now time.Time) bool {
	return !t.NotBefore.After(now)
}
