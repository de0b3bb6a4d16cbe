package checkpoint

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default snapshot cadence.
const (
	// DefaultEveryN snapshots after this many completed tasks.
	DefaultEveryN = 25

	// DefaultInterval snapshots after this much elapsed time, whichever
	// of the two triggers fires first.
	DefaultInterval = 30 * time.Second
)

// Manager decides when to take snapshots and writes them through a
// Store. A snapshot fires every N completed tasks or every interval,
// whichever comes first. Safe for concurrent use by crawl workers.
type Manager struct {
	// store persists the snapshots.
	store Store

	// everyN is the completion-count trigger.
	everyN int

	// interval is the elapsed-time trigger.
	interval time.Duration

	// logger is used for snapshot-level logging.
	logger *slog.Logger

	// now is the clock, injectable for tests.
	now func() time.Time

	mu          sync.Mutex
	completions int
	lastSave    time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEveryN sets the completion-count trigger.
func WithEveryN(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.everyN = n
		}
	}
}

// WithInterval sets the elapsed-time trigger.
func WithInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager with the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		everyN:   DefaultEveryN,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.lastSave = m.now()
	return m
}

// NoteCompletion records one completed task and snapshots if either
// cadence trigger fired. The build function is only invoked when a
// snapshot is actually taken, so callers can defer the cost of copying
// the frontier. Returns true when a snapshot was written.
func (m *Manager) NoteCompletion(ctx context.Context, build func() *Snapshot) (bool, error) {
	m.mu.Lock()
	m.completions++
	due := m.completions >= m.everyN || m.now().Sub(m.lastSave) >= m.interval
	if !due {
		m.mu.Unlock()
		return false, nil
	}
	m.completions = 0
	m.lastSave = m.now()
	m.mu.Unlock()

	return true, m.save(ctx, build())
}

// Force writes a snapshot immediately, regardless of cadence. Used for
// the final checkpoint on shutdown.
func (m *Manager) Force(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	m.completions = 0
	m.lastSave = m.now()
	m.mu.Unlock()

	return m.save(ctx, snap)
}

// Load reads the last snapshot from the store.
func (m *Manager) Load(ctx context.Context) (*Snapshot, error) {
	return m.store.Load(ctx)
}

// Clear removes the stored snapshot after a fully drained run.
func (m *Manager) Clear(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// save writes through to the store with logging.
func (m *Manager) save(ctx context.Context, snap *Snapshot) error {
	if err := m.store.Save(ctx, snap); err != nil {
		return err
	}
	m.logger.Debug("checkpoint saved",
		"run_id", snap.RunID,
		"queued", len(snap.Queued),
		"in_flight", len(snap.InFlight),
		"completed", snap.Completed,
	)
	return nil
}
