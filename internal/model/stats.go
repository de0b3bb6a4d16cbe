package model

import "time"

// RunStats aggregates the outcome of a discovery run for reporting.
//
// Counts by status and depth come from the category store at the end of
// the run; the crawl counters (retries, challenge waits, depth-limited
// leaves) are accumulated by the workers as they go.
type RunStats struct {
	// RunID uniquely identifies the run. It is stamped on checkpoints so
	// a resumed run can be correlated with its predecessor.
	RunID string `json:"run_id"`

	// StartedAt and FinishedAt bound the run's wall-clock duration.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Resumed is true when the run restored state from a checkpoint.
	Resumed bool `json:"resumed"`

	// Seeds is the number of root specs the run was given.
	Seeds int `json:"seeds"`

	// FailedSeeds counts seed roots that ended failed_permanent. The exit
	// policy compares FailedSeeds/Seeds against the failure threshold.
	FailedSeeds int `json:"failed_seeds"`

	// TasksCompleted counts frontier tasks that finished, successfully
	// or by permanent failure.
	TasksCompleted int `json:"tasks_completed"`

	// Retries counts transient-failure requeues.
	Retries int `json:"retries"`

	// ChallengeWaits counts challenge-delay requeues.
	ChallengeWaits int `json:"challenge_waits"`

	// DepthLimited counts nodes marked processed_leaf without exploration
	// because they sat at the depth ceiling. Downstream completeness
	// reporting uses this to distinguish true leaves from truncation.
	DepthLimited int `json:"depth_limited"`

	// ByStatus holds final node counts per status.
	ByStatus map[Status]int `json:"by_status"`

	// ByDepth holds final node counts per depth.
	ByDepth map[int]int `json:"by_depth"`
}

// NewRunStats creates an empty RunStats for the given run.
func NewRunStats(runID string) *RunStats {
	return &RunStats{
		RunID:    runID,
		ByStatus: make(map[Status]int),
		ByDepth:  make(map[int]int),
	}
}

// TotalNodes returns the total number of nodes across all statuses.
func (s *RunStats) TotalNodes() int {
	total := 0
	for _, n := range s.ByStatus {
		total += n
	}
	return total
}

// Processed returns the number of nodes visible to downstream consumers.
func (s *RunStats) Processed() int {
	return s.ByStatus[StatusProcessedLeaf] + s.ByStatus[StatusProcessedHasChildren]
}

// Failed returns the number of permanently failed nodes.
func (s *RunStats) Failed() int {
	return s.ByStatus[StatusFailedPermanent]
}

// Duration returns the run's wall-clock duration.
func (s *RunStats) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// SeedFailureRate returns the fraction of seeds that permanently failed,
// or 0 when the run had no seeds.
func (s *RunStats) SeedFailureRate() float64 {
	if s.Seeds == 0 {
		return 0
	}
	return float64(s.FailedSeeds) / float64(s.Seeds)
}
