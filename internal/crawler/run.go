package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shelfmap/shelfmap/internal/backoff"
	"github.com/shelfmap/shelfmap/internal/explorer"
	"github.com/shelfmap/shelfmap/internal/model"
	"github.com/shelfmap/shelfmap/internal/urlnorm"
)

// Run executes a discovery run until the frontier drains or the context
// is cancelled. Cancellation is not an error: the run checkpoints its
// remaining work and returns the stats accumulated so far.
//
// The returned error is ErrSeedFailureRate when the run finished but
// too many seeds failed permanently, or a store/checkpoint failure.
func (c *Crawler) Run(ctx context.Context, seeds []Seed) (*model.RunStats, error) {
	stats := model.NewRunStats(c.runID)
	stats.StartedAt = c.now()
	stats.Seeds = len(seeds)

	if c.resume {
		resumed, err := c.restore(ctx)
		if err != nil {
			return nil, err
		}
		stats.Resumed = resumed
	}

	if err := c.seed(ctx, seeds); err != nil {
		return nil, err
	}
	stats.RunID = c.runID

	c.logger.Info("discovery run started",
		"run_id", c.runID,
		"seeds", len(seeds),
		"workers", c.concurrency,
		"resumed", stats.Resumed,
	)

	g, workerCtx := errgroup.WithContext(ctx)
	for i := 0; i < c.concurrency; i++ {
		g.Go(func() error {
			return c.worker(workerCtx)
		})
	}
	runErr := g.Wait()

	// Cancellation leaves live tasks behind; checkpoint them so the
	// next run can resume. A drained frontier makes the checkpoint
	// obsolete instead.
	if c.checkpoints != nil {
		// The run context may already be dead; the final checkpoint
		// must still be written.
		finalCtx := context.WithoutCancel(ctx)
		if c.frontier.Live() > 0 {
			if err := c.checkpoints.Force(finalCtx, c.snapshot()); err != nil {
				return nil, fmt.Errorf("failed to write final checkpoint: %w", err)
			}
		} else {
			if err := c.checkpoints.Clear(finalCtx); err != nil {
				return nil, fmt.Errorf("failed to clear checkpoint: %w", err)
			}
		}
	}

	if runErr != nil && !isCancellation(runErr) {
		return nil, runErr
	}

	if err := c.finalize(context.WithoutCancel(ctx), stats, seeds); err != nil {
		return nil, err
	}

	c.logger.Info("discovery run finished",
		"run_id", c.runID,
		"nodes", stats.TotalNodes(),
		"processed", stats.Processed(),
		"failed", stats.Failed(),
		"completed_tasks", stats.TasksCompleted,
		"duration", stats.Duration().Round(time.Millisecond),
	)

	if c.failureRateThreshold > 0 && stats.SeedFailureRate() > c.failureRateThreshold {
		return stats, fmt.Errorf("%d of %d seeds failed: %w",
			stats.FailedSeeds, stats.Seeds, ErrSeedFailureRate)
	}
	return stats, nil
}

// isCancellation reports whether err is context cancellation or timeout.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// restore rebuilds the frontier from the last checkpoint. Returns false
// when no checkpoint exists.
func (c *Crawler) restore(ctx context.Context) (bool, error) {
	if c.checkpoints == nil {
		return false, nil
	}

	snap, err := c.checkpoints.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if snap == nil {
		return false, nil
	}

	// Claims held by the previous process are lost; their nodes sit
	// in_progress in the store and must go back to pending.
	reset, err := c.store.ResetInProgress(ctx)
	if err != nil {
		return false, err
	}

	now := c.now()
	restored := 0
	for _, task := range snap.Tasks() {
		t := task
		// In-flight tasks return immediately; queued tasks keep any
		// backoff delay that has not yet elapsed.
		if t.NotBefore.Before(now) {
			t.NotBefore = now
		}
		if c.frontier.Enqueue(&t) {
			restored++
		}
	}

	// Nodes can be pending in the store yet missing from the snapshot
	// when the crash hit between persisting a child and the next
	// checkpoint. Re-enqueue them so no discovered node is orphaned.
	reconciled, err := c.reconcilePending(ctx)
	if err != nil {
		return false, err
	}

	c.runID = snap.RunID

	c.mu.Lock()
	c.tasksCompleted = snap.Completed
	c.mu.Unlock()

	c.logger.Info("resumed from checkpoint",
		"run_id", snap.RunID,
		"restored_tasks", restored,
		"reset_in_progress", reset,
		"reconciled_pending", reconciled,
	)
	return true, nil
}

// reconcilePending enqueues store-pending nodes that have no live task.
func (c *Crawler) reconcilePending(ctx context.Context) (int, error) {
	nodes, err := c.store.ListByStatus(ctx, "", model.StatusPending)
	if err != nil {
		return 0, err
	}

	count := 0
	now := c.now()
	for _, node := range nodes {
		task := &model.FrontierTask{
			NodeID:     node.ID,
			RetailerID: node.RetailerID,
			URL:        node.URL,
			Depth:      node.Depth,
			Attempt:    node.AttemptCount,
			EnqueuedAt: now,
		}
		if c.frontier.Enqueue(task) {
			count++
		}
	}
	return count, nil
}

// seed persists the seed nodes and enqueues tasks for those not already
// in a terminal state. Re-running over an existing store is idempotent:
// processed nodes are left alone.
func (c *Crawler) seed(ctx context.Context, seeds []Seed) error {
	for _, s := range seeds {
		canonical, err := urlnorm.Canonicalize(s.URL)
		if err != nil {
			return fmt.Errorf("invalid seed URL %q: %w", s.URL, err)
		}

		node := &model.CategoryNode{
			RetailerID: s.RetailerID,
			Name:       urlnorm.NormalizeName(s.Name),
			URL:        canonical,
			Depth:      0,
			Status:     model.StatusPending,
		}
		created, err := c.store.CreateIfAbsent(ctx, node)
		if err != nil {
			return err
		}
		if node.Status.Terminal() {
			continue
		}

		task := &model.FrontierTask{
			NodeID:     node.ID,
			RetailerID: node.RetailerID,
			URL:        node.URL,
			Depth:      node.Depth,
			Attempt:    node.AttemptCount,
			EnqueuedAt: c.now(),
		}
		if c.frontier.Enqueue(task) && created {
			c.metrics.NodeDiscovered(node.RetailerID)
		}
	}
	return nil
}

// worker claims and processes tasks until the frontier is exhausted or
// the context is cancelled.
func (c *Crawler) worker(ctx context.Context) error {
	idle := idleBase
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		task := c.frontier.Claim()
		if task == nil {
			if c.frontier.Live() == 0 {
				return nil
			}
			if err := c.idle(ctx, &idle); err != nil {
				return err
			}
			continue
		}
		idle = idleBase

		if err := c.process(ctx, task); err != nil {
			return err
		}
	}
}

// idle sleeps until the next delayed task could be ready, or for an
// exponentially growing poll interval, whichever is sooner.
func (c *Crawler) idle(ctx context.Context, idle *time.Duration) error {
	sleep := *idle
	if wake, ok := c.frontier.NextWake(); ok {
		if until := wake.Sub(c.now()); until > 0 && until < sleep {
			sleep = until
		}
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if *idle < idleMax {
		*idle *= 2
		if *idle > idleMax {
			*idle = idleMax
		}
	}
	return nil
}

// process explores one claimed task and routes the outcome: children
// persisted and enqueued on success, retry or permanent failure
// otherwise.
func (c *Crawler) process(ctx context.Context, task *model.FrontierTask) error {
	c.metrics.TaskClaimed(task.RetailerID)

	// Nodes at the depth ceiling are recorded but never explored.
	if task.Depth >= c.depthCeiling(task.RetailerID) {
		if err := c.store.SetStatus(ctx, task.NodeID, model.StatusProcessedLeaf); err != nil {
			return err
		}
		c.frontier.Complete(task.NodeID)
		c.noteDepthLimited()
		c.noteCompleted()
		c.metrics.TaskCompleted(task.RetailerID, "depth_limited")
		if err := c.maybeCheckpoint(ctx); err != nil {
			return err
		}
		c.logger.Debug("depth ceiling reached",
			"retailer", task.RetailerID, "url", task.URL, "depth", task.Depth)
		return nil
	}

	if err := c.store.MarkAttempt(ctx, task.NodeID, c.now()); err != nil {
		return err
	}

	start := c.now()
	candidates, err := c.explorerFor(task.RetailerID).Explore(ctx, task.URL)
	c.metrics.ObserveExplore(task.RetailerID, c.now().Sub(start).Seconds())

	if err != nil {
		// A cancelled exploration says nothing about the page. Leave
		// the task claimed; the final checkpoint records it in-flight
		// and the next run retries it without penalty.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.handleFailure(ctx, task, err)
	}

	return c.handleSuccess(ctx, task, candidates)
}

// handleSuccess persists child candidates and finishes the task.
func (c *Crawler) handleSuccess(ctx context.Context, task *model.FrontierTask, candidates []model.ChildCandidate) error {
	children, err := c.linkChildren(ctx, task, candidates)
	if err != nil {
		return err
	}

	status := model.StatusProcessedLeaf
	outcome := "leaf"
	if children > 0 {
		status = model.StatusProcessedHasChildren
		outcome = "has_children"
	}
	if err := c.store.SetStatus(ctx, task.NodeID, status); err != nil {
		return err
	}

	c.frontier.Complete(task.NodeID)
	c.noteCompleted()
	c.metrics.TaskCompleted(task.RetailerID, outcome)

	c.logger.Debug("page explored",
		"retailer", task.RetailerID,
		"url", task.URL,
		"depth", task.Depth,
		"children", children,
	)
	return c.maybeCheckpoint(ctx)
}

// linkChildren canonicalizes candidates, persists the new ones, and
// enqueues discovery tasks for every non-terminal child. Returns the
// number of distinct children linked to the node.
func (c *Crawler) linkChildren(ctx context.Context, task *model.FrontierTask, candidates []model.ChildCandidate) (int, error) {
	seen := make(map[string]bool, len(candidates))
	children := 0

	for _, cand := range candidates {
		canonical, err := urlnorm.Resolve(task.URL, cand.URL)
		if err != nil {
			c.logger.Debug("skipping malformed candidate",
				"retailer", task.RetailerID, "href", cand.URL, "error", err)
			continue
		}
		if canonical == task.URL || seen[canonical] {
			continue
		}
		same, err := urlnorm.SameSite(task.URL, canonical)
		if err != nil || !same {
			continue
		}
		seen[canonical] = true

		parentID := task.NodeID
		child := &model.CategoryNode{
			RetailerID: task.RetailerID,
			Name:       urlnorm.NormalizeName(cand.Name),
			URL:        canonical,
			ParentID:   &parentID,
			Depth:      task.Depth + 1,
			Status:     model.StatusPending,
		}
		created, err := c.store.CreateIfAbsent(ctx, child)
		if err != nil {
			return 0, err
		}
		children++

		if created {
			c.metrics.NodeDiscovered(task.RetailerID)
		}
		if child.Status.Terminal() {
			continue
		}

		childTask := &model.FrontierTask{
			NodeID:     child.ID,
			RetailerID: child.RetailerID,
			URL:        child.URL,
			Depth:      child.Depth,
			Attempt:    child.AttemptCount,
			EnqueuedAt: c.now(),
		}
		c.frontier.Enqueue(childTask)
	}
	return children, nil
}

// handleFailure routes a failed exploration through the backoff policy.
func (c *Crawler) handleFailure(ctx context.Context, task *model.FrontierTask, expErr error) error {
	now := c.now()

	var decision backoff.Decision
	kind := explorer.KindOf(expErr)
	switch kind {
	case explorer.KindPermanent:
		decision = backoff.Decision{Outcome: backoff.OutcomeFail}

	case explorer.KindChallenge:
		if task.FirstChallengeAt == nil {
			first := now
			task.FirstChallengeAt = &first
		}
		decision = c.policy.Challenge(*task.FirstChallengeAt, now)

	default:
		// MarkAttempt already counted the attempt that just failed.
		decision = c.policy.Transient(task.Attempt+1, now)
	}

	if decision.Outcome == backoff.OutcomeFail {
		if err := c.store.SetStatus(ctx, task.NodeID, model.StatusFailedPermanent); err != nil {
			return err
		}
		c.frontier.Complete(task.NodeID)
		c.noteCompleted()
		c.metrics.TaskCompleted(task.RetailerID, "failed")
		c.logger.Warn("node failed permanently",
			"retailer", task.RetailerID,
			"url", task.URL,
			"kind", string(kind),
			"attempts", task.Attempt+1,
			"error", expErr,
		)
		return c.maybeCheckpoint(ctx)
	}

	// Retry: the node goes back to pending in the store and the task
	// returns to the queue, unclaimable until NotBefore.
	if err := c.store.SetStatus(ctx, task.NodeID, model.StatusPending); err != nil {
		return err
	}
	c.frontier.Requeue(task.NodeID, decision.NotBefore, decision.CountsAttempt)

	if kind == explorer.KindChallenge {
		c.noteChallengeWait()
		c.metrics.TaskRetried(task.RetailerID, "challenge")
	} else {
		c.noteRetry()
		c.metrics.TaskRetried(task.RetailerID, "transient")
	}

	c.logger.Debug("task requeued",
		"retailer", task.RetailerID,
		"url", task.URL,
		"kind", string(kind),
		"not_before", decision.NotBefore,
	)
	return nil
}

// maybeCheckpoint lets the manager snapshot if its cadence is due.
func (c *Crawler) maybeCheckpoint(ctx context.Context) error {
	if c.checkpoints == nil {
		return nil
	}
	_, err := c.checkpoints.NoteCompletion(ctx, c.snapshot)
	if err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// finalize fills the stats from the store after the workers stop.
func (c *Crawler) finalize(ctx context.Context, stats *model.RunStats, seeds []Seed) error {
	stats.FinishedAt = c.now()

	c.mu.Lock()
	stats.TasksCompleted = c.tasksCompleted
	stats.Retries = c.retries
	stats.ChallengeWaits = c.challengeWaits
	stats.DepthLimited = c.depthLimited
	c.mu.Unlock()

	byStatus, err := c.store.CountByStatus(ctx, "")
	if err != nil {
		return err
	}
	stats.ByStatus = byStatus

	byDepth, err := c.store.CountByDepth(ctx, "")
	if err != nil {
		return err
	}
	stats.ByDepth = byDepth

	// Seed failure is judged per seed URL, not per depth-0 row, so two
	// seeds of one retailer count separately.
	for _, s := range seeds {
		canonical, err := urlnorm.Canonicalize(s.URL)
		if err != nil {
			continue
		}
		node, err := c.store.GetByURL(ctx, s.RetailerID, canonical)
		if err != nil {
			continue
		}
		if node.Status == model.StatusFailedPermanent {
			stats.FailedSeeds++
		}
	}
	return nil
}
