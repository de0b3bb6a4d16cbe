package crawler

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmap/shelfmap/internal/backoff"
	"github.com/shelfmap/shelfmap/internal/checkpoint"
	"github.com/shelfmap/shelfmap/internal/explorer"
	"github.com/shelfmap/shelfmap/internal/frontier"
	"github.com/shelfmap/shelfmap/internal/metrics"
	"github.com/shelfmap/shelfmap/internal/store"
)

// Default orchestration values.
const (
	// DefaultConcurrency is the worker pool size.
	DefaultConcurrency = 8

	// DefaultMaxDepth is the depth ceiling when none is configured.
	DefaultMaxDepth = 8

	// idleBase is the first idle sleep when no task is ready.
	idleBase = 50 * time.Millisecond

	// idleMax caps idle sleep growth. Bounded so workers notice newly
	// ready delayed tasks within a second.
	idleMax = 1 * time.Second
)

// ErrSeedFailureRate is returned by Run when the fraction of seeds that
// failed permanently exceeds the configured threshold. The run itself
// completed; the error signals that its coverage is not trustworthy.
var ErrSeedFailureRate = errors.New("seed failure rate exceeded threshold")

// Seed is one starting point for discovery: a depth-0 category URL.
type Seed struct {
	// RetailerID identifies the site the seed belongs to.
	RetailerID string

	// Name is the display name for the root node.
	Name string

	// URL is the root category page. It is canonicalized before use.
	URL string
}

// Crawler runs category discovery across one or more retailers.
// Construct with New; the zero value is not usable.
type Crawler struct {
	// store persists the category hierarchy.
	store *store.Store

	// frontier schedules discovery tasks.
	frontier *frontier.Frontier

	// defaultExplorer explores pages for retailers without a specific
	// explorer registered.
	defaultExplorer explorer.Explorer

	// explorers holds per-retailer explorer overrides. Retailers differ
	// in cookies, headers, and category URL shapes, so each can carry
	// its own explorer.
	explorers map[string]explorer.Explorer

	// checkpoints writes progress snapshots. Nil disables checkpointing.
	checkpoints *checkpoint.Manager

	// policy decides retry and challenge handling.
	policy backoff.Policy

	// metrics is optional Prometheus instrumentation; nil is a no-op.
	metrics *metrics.Metrics

	// logger receives structured progress logs.
	logger *slog.Logger

	// concurrency is the worker pool size.
	concurrency int

	// maxDepth is the global depth ceiling. Nodes at this depth become
	// leaves without exploration.
	maxDepth int

	// retailerDepth holds per-retailer depth ceiling overrides.
	retailerDepth map[string]int

	// runID identifies the run in checkpoints, logs, and reports.
	runID string

	// resume restores the frontier from the last checkpoint.
	resume bool

	// failureRateThreshold triggers ErrSeedFailureRate; zero disables.
	failureRateThreshold float64

	// now is the clock, injectable for tests.
	now func() time.Time

	// mu protects the run counters below.
	mu             sync.Mutex
	tasksCompleted int
	retries        int
	challengeWaits int
	depthLimited   int
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithConcurrency sets the worker pool size.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithMaxDepth sets the global depth ceiling.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) {
		if depth >= 0 {
			c.maxDepth = depth
		}
	}
}

// WithRetailerMaxDepth overrides the depth ceiling for one retailer.
func WithRetailerMaxDepth(retailerID string, depth int) Option {
	return func(c *Crawler) {
		if depth >= 0 {
			c.retailerDepth[retailerID] = depth
		}
	}
}

// WithRetailerExplorer registers a retailer-specific explorer, used
// instead of the default for that retailer's pages.
func WithRetailerExplorer(retailerID string, exp explorer.Explorer) Option {
	return func(c *Crawler) {
		c.explorers[retailerID] = exp
	}
}

// WithPolicy sets the backoff policy.
func WithPolicy(p backoff.Policy) Option {
	return func(c *Crawler) {
		c.policy = p
	}
}

// WithCheckpoints enables progress snapshots through the manager.
func WithCheckpoints(m *checkpoint.Manager) Option {
	return func(c *Crawler) {
		c.checkpoints = m
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(c *Crawler) {
		if id != "" {
			c.runID = id
		}
	}
}

// WithResume restores the frontier from the last checkpoint instead of
// starting only from seeds.
func WithResume(resume bool) Option {
	return func(c *Crawler) {
		c.resume = resume
	}
}

// WithFailureRateThreshold sets the seed failure rate above which Run
// returns ErrSeedFailureRate. Zero disables the check.
func WithFailureRateThreshold(rate float64) Option {
	return func(c *Crawler) {
		if rate > 0 {
			c.failureRateThreshold = rate
		}
	}
}

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) {
		c.now = now
	}
}

// New creates a Crawler over the given store, frontier, and default
// explorer.
func New(st *store.Store, ft *frontier.Frontier, exp explorer.Explorer, opts ...Option) *Crawler {
	c := &Crawler{
		store:           st,
		frontier:        ft,
		defaultExplorer: exp,
		explorers:       make(map[string]explorer.Explorer),
		retailerDepth:   make(map[string]int),
		policy:          backoff.DefaultPolicy(),
		concurrency:     DefaultConcurrency,
		maxDepth:        DefaultMaxDepth,
		runID:           uuid.NewString(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// RunID returns the identifier stamped on this run's checkpoints.
func (c *Crawler) RunID() string {
	return c.runID
}

// explorerFor returns the explorer for a retailer.
func (c *Crawler) explorerFor(retailerID string) explorer.Explorer {
	if exp, ok := c.explorers[retailerID]; ok {
		return exp
	}
	return c.defaultExplorer
}

// depthCeiling returns the depth ceiling for a retailer.
func (c *Crawler) depthCeiling(retailerID string) int {
	if depth, ok := c.retailerDepth[retailerID]; ok {
		return depth
	}
	return c.maxDepth
}

// snapshot builds a checkpoint from the current frontier state.
// Claimed tasks are recorded separately so a resume can treat their
// claims as lost.
func (c *Crawler) snapshot() *checkpoint.Snapshot {
	queued, claimed := c.frontier.Snapshot()

	c.mu.Lock()
	completed := c.tasksCompleted
	c.mu.Unlock()

	return &checkpoint.Snapshot{
		RunID:     c.runID,
		CreatedAt: c.now(),
		Queued:    queued,
		InFlight:  claimed,
		Completed: completed,
	}
}

// noteCompleted records a finished task.
func (c *Crawler) noteCompleted() {
	c.mu.Lock()
	c.tasksCompleted++
	c.mu.Unlock()

	c.metrics.SetFrontierLive(c.frontier.Live())
}

// model.RunStats counter helpers. Kept tiny so process() reads cleanly.

func (c *Crawler) noteRetry() {
	c.mu.Lock()
	c.retries++
	c.mu.Unlock()
}

func (c *Crawler) noteChallengeWait() {
	c.mu.Lock()
	c.challengeWaits++
	c.mu.Unlock()
}

func (c *Crawler) noteDepthLimited() {
	c.mu.Lock()
	c.depthLimited++
	c.mu.Unlock()
}
