package model

import (
	"testing"
	"time"
)

// TestStatusValid tests status validation.
func TestStatusValid(t *testing.T) {
	t.Parallel()

	valid := []Status{
		StatusPending,
		StatusInProgress,
		StatusProcessedLeaf,
		StatusProcessedHasChildren,
		StatusFailedPermanent,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if Status("done").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if Status("").Valid() {
		t.Error("expected empty status to be invalid")
	}
}

// TestStatusTerminal tests terminal state detection.
func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusInProgress, false},
		{StatusProcessedLeaf, true},
		{StatusProcessedHasChildren, true},
		{StatusFailedPermanent, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%q.Terminal() = %v, expected %v", tt.status, got, tt.terminal)
		}
	}
}

// TestStatusDownstreamVisible tests downstream visibility.
func TestStatusDownstreamVisible(t *testing.T) {
	t.Parallel()

	if !StatusProcessedLeaf.DownstreamVisible() {
		t.Error("processed_leaf should be downstream visible")
	}
	if !StatusProcessedHasChildren.DownstreamVisible() {
		t.Error("processed_has_children should be downstream visible")
	}
	if StatusFailedPermanent.DownstreamVisible() {
		t.Error("failed_permanent should not be downstream visible")
	}
	if StatusPending.DownstreamVisible() {
		t.Error("pending should not be downstream visible")
	}
}

// TestValidateHierarchy tests the depth/parent invariant.
func TestValidateHierarchy(t *testing.T) {
	t.Parallel()

	t.Run("valid root", func(t *testing.T) {
		t.Parallel()

		root := &CategoryNode{ID: 1, Depth: 0}
		if err := root.ValidateHierarchy(nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("root with nonzero depth", func(t *testing.T) {
		t.Parallel()

		root := &CategoryNode{ID: 1, Depth: 2}
		if err := root.ValidateHierarchy(nil); err == nil {
			t.Error("expected error for root with depth 2")
		}
	})

	t.Run("valid child", func(t *testing.T) {
		t.Parallel()

		parentID := int64(1)
		parent := &CategoryNode{ID: 1, Depth: 3}
		child := &CategoryNode{ID: 2, ParentID: &parentID, Depth: 4}
		if err := child.ValidateHierarchy(parent); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("child with wrong depth", func(t *testing.T) {
		t.Parallel()

		parentID := int64(1)
		parent := &CategoryNode{ID: 1, Depth: 3}
		child := &CategoryNode{ID: 2, ParentID: &parentID, Depth: 3}
		if err := child.ValidateHierarchy(parent); err == nil {
			t.Error("expected error for child at same depth as parent")
		}
	})

	t.Run("child without parent reference", func(t *testing.T) {
		t.Parallel()

		parent := &CategoryNode{ID: 1, Depth: 0}
		child := &CategoryNode{ID: 2, Depth: 1}
		if err := child.ValidateHierarchy(parent); err == nil {
			t.Error("expected error for child without parent reference")
		}
	})

	t.Run("child referencing different parent", func(t *testing.T) {
		t.Parallel()

		wrongID := int64(99)
		parent := &CategoryNode{ID: 1, Depth: 0}
		child := &CategoryNode{ID: 2, ParentID: &wrongID, Depth: 1}
		if err := child.ValidateHierarchy(parent); err == nil {
			t.Error("expected error for child referencing a different parent")
		}
	})
}

// TestFrontierTaskReady tests the notBefore gate.
func TestFrontierTaskReady(t *testing.T) {
	t.Parallel()

	now := time.Now()

	task := &FrontierTask{NotBefore: now}
	if !task.Ready(now) {
		t.Error("task with notBefore == now should be ready")
	}

	task = &FrontierTask{NotBefore: now.Add(time.Second)}
	if task.Ready(now) {
		t.Error("task with future notBefore should not be ready")
	}
	if !task.Ready(now.Add(2 * time.Second)) {
		t.Error("task should be ready after notBefore passes")
	}
}

// TestFrontierTaskKey tests the dedup key format.
func TestFrontierTaskKey(t *testing.T) {
	t.Parallel()

	a := &FrontierTask{RetailerID: "acme", URL: "https://acme.test/c"}
	b := &FrontierTask{RetailerID: "acme", URL: "https://acme.test/c"}
	c := &FrontierTask{RetailerID: "other", URL: "https://acme.test/c"}

	if a.Key() != b.Key() {
		t.Error("identical retailer+url should produce identical keys")
	}
	if a.Key() == c.Key() {
		t.Error("different retailers should produce different keys")
	}
}

// TestRunStats tests stat aggregation helpers.
func TestRunStats(t *testing.T) {
	t.Parallel()

	stats := NewRunStats("run-1")
	stats.Seeds = 4
	stats.FailedSeeds = 1
	stats.ByStatus[StatusProcessedLeaf] = 5
	stats.ByStatus[StatusProcessedHasChildren] = 3
	stats.ByStatus[StatusFailedPermanent] = 2

	if got := stats.TotalNodes(); got != 10 {
		t.Errorf("TotalNodes() = %d, expected 10", got)
	}
	if got := stats.Processed(); got != 8 {
		t.Errorf("Processed() = %d, expected 8", got)
	}
	if got := stats.Failed(); got != 2 {
		t.Errorf("Failed() = %d, expected 2", got)
	}
	if got := stats.SeedFailureRate(); got != 0.25 {
		t.Errorf("SeedFailureRate() = %f, expected 0.25", got)
	}

	empty := NewRunStats("run-2")
	if got := empty.SeedFailureRate(); got != 0 {
		t.Errorf("SeedFailureRate() with no seeds = %f, expected 0", got)
	}
}
