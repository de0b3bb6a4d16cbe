package frontier

import (
	"sync"
	"time"

	"github.com/shelfmap/shelfmap/internal/model"
)

// Frontier is a thread-safe queue of discovery tasks with per-retailer
// fairness. All methods are safe for concurrent use.
type Frontier struct {
	mu sync.Mutex

	// pending holds queued (possibly delayed) tasks per retailer, in
	// enqueue order.
	pending map[string][]*model.FrontierTask

	// claimed holds tasks currently held by workers, by node ID.
	claimed map[int64]*model.FrontierTask

	// live maps dedup keys to node IDs for every live task, queued or
	// claimed.
	live map[string]int64

	// limits holds per-retailer in-flight ceilings; zero means no limit.
	limits map[string]int

	// inflight counts claimed tasks per retailer.
	inflight map[string]int

	// retailers preserves first-seen retailer order for round-robin.
	retailers []string

	// cursor is the round-robin position; claims start after the
	// retailer that satisfied the previous claim.
	cursor int

	// now is the clock, injectable for tests.
	now func() time.Time
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(f *Frontier) {
		f.now = now
	}
}

// WithRetailerLimit sets the in-flight ceiling for a retailer. Zero or
// negative means unlimited.
func WithRetailerLimit(retailerID string, limit int) Option {
	return func(f *Frontier) {
		if limit > 0 {
			f.limits[retailerID] = limit
		}
	}
}

// New creates an empty Frontier.
func New(opts ...Option) *Frontier {
	f := &Frontier{
		pending:  make(map[string][]*model.FrontierTask),
		claimed:  make(map[int64]*model.FrontierTask),
		live:     make(map[string]int64),
		limits:   make(map[string]int),
		inflight: make(map[string]int),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enqueue inserts a task unless a live task already exists for the same
// node. Returns true if the task was inserted, false for the idempotent
// no-op case.
func (f *Frontier) Enqueue(task *model.FrontierTask) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := task.Key()
	if _, exists := f.live[key]; exists {
		return false
	}

	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = f.now()
	}
	if task.NotBefore.IsZero() {
		task.NotBefore = task.EnqueuedAt
	}

	f.addRetailer(task.RetailerID)
	f.pending[task.RetailerID] = append(f.pending[task.RetailerID], task)
	f.live[key] = task.NodeID
	return true
}

// Claim returns the oldest ready task from the next retailer in
// round-robin order with remaining in-flight quota, or nil when no task
// is ready. Callers should idle briefly before re-polling rather than
// busy-spin; NextWake tells them how long.
func (f *Frontier) Claim() *model.FrontierTask {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.retailers) == 0 {
		return nil
	}

	now := f.now()
	for i := 0; i < len(f.retailers); i++ {
		idx := (f.cursor + 1 + i) % len(f.retailers)
		retailerID := f.retailers[idx]

		if limit := f.limits[retailerID]; limit > 0 && f.inflight[retailerID] >= limit {
			continue
		}

		task := f.takeOldestReady(retailerID, now)
		if task == nil {
			continue
		}

		f.cursor = idx
		f.claimed[task.NodeID] = task
		f.inflight[retailerID]++
		return task
	}
	return nil
}

// takeOldestReady removes and returns the ready task with the earliest
// enqueue time for the retailer, or nil.
func (f *Frontier) takeOldestReady(retailerID string, now time.Time) *model.FrontierTask {
	queue := f.pending[retailerID]
	best := -1
	for i, task := range queue {
		if !task.Ready(now) {
			continue
		}
		if best == -1 || task.EnqueuedAt.Before(queue[best].EnqueuedAt) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}

	task := queue[best]
	f.pending[retailerID] = append(queue[:best], queue[best+1:]...)
	return task
}

// Complete removes a claimed task permanently, releasing its dedup key
// and its retailer's in-flight slot.
func (f *Frontier) Complete(nodeID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	task, ok := f.claimed[nodeID]
	if !ok {
		return
	}
	delete(f.claimed, nodeID)
	delete(f.live, task.Key())
	f.inflight[task.RetailerID]--
}

// Requeue returns a claimed task to the queue with a new NotBefore,
// keeping it live under the same dedup key. countAttempt increments the
// task's attempt counter; challenge waits pass false.
func (f *Frontier) Requeue(nodeID int64, notBefore time.Time, countAttempt bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	task, ok := f.claimed[nodeID]
	if !ok {
		return
	}
	delete(f.claimed, nodeID)
	f.inflight[task.RetailerID]--

	if countAttempt {
		task.Attempt++
	}
	task.NotBefore = notBefore
	f.pending[task.RetailerID] = append(f.pending[task.RetailerID], task)
}

// Live returns the number of live tasks: queued, delayed, and claimed.
// The run is exhausted exactly when Live reaches zero, because claimed
// tasks are still live and only they can spawn new work.
func (f *Frontier) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// NextWake returns the earliest NotBefore among queued tasks, and false
// when the queue holds no delayed work. Idle workers use this to sleep
// just long enough instead of polling blindly.
func (f *Frontier) NextWake() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var earliest time.Time
	found := false
	for _, queue := range f.pending {
		for _, task := range queue {
			if !found || task.NotBefore.Before(earliest) {
				earliest = task.NotBefore
				found = true
			}
		}
	}
	return earliest, found
}

// Snapshot returns copies of all live tasks: queued tasks as they are,
// and claimed tasks separately so a resume can treat their in-flight
// claims as lost.
func (f *Frontier) Snapshot() (queued, claimed []model.FrontierTask) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, queue := range f.pending {
		for _, task := range queue {
			queued = append(queued, *task)
		}
	}
	for _, task := range f.claimed {
		claimed = append(claimed, *task)
	}
	return queued, claimed
}

// addRetailer registers a retailer for round-robin ordering if unseen.
// Caller must hold the mutex.
func (f *Frontier) addRetailer(retailerID string) {
	if _, exists := f.pending[retailerID]; exists {
		return
	}
	for _, r := range f.retailers {
		if r == retailerID {
			return
		}
	}
	f.retailers = append(f.retailers, retailerID)
}
