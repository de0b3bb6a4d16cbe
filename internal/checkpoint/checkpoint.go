package checkpoint

import (
	"context"
	"time"

	"github.com/shelfmap/shelfmap/internal/model"
)

// Snapshot is one durable record of crawl progress.
type Snapshot struct {
	// RunID identifies the run that wrote the snapshot.
	RunID string `json:"run_id"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`

	// Queued holds frontier tasks that were waiting (possibly delayed)
	// at snapshot time. They are restored verbatim.
	Queued []model.FrontierTask `json:"queued"`

	// InFlight holds tasks claimed by workers at snapshot time. On
	// resume they return to the queue as pending with attempt counters
	// preserved.
	InFlight []model.FrontierTask `json:"in_flight"`

	// Completed is the running count of completed tasks, carried so a
	// resumed run reports cumulative progress.
	Completed int `json:"completed"`
}

// Tasks returns all live tasks in the snapshot, queued first.
func (s *Snapshot) Tasks() []model.FrontierTask {
	tasks := make([]model.FrontierTask, 0, len(s.Queued)+len(s.InFlight))
	tasks = append(tasks, s.Queued...)
	tasks = append(tasks, s.InFlight...)
	return tasks
}

// Store persists snapshots. Implementations must guarantee that Save is
// atomic with respect to process crash and that Load returns either the
// most recent complete snapshot or (nil, nil) when none exists.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Clear(ctx context.Context) error
}
