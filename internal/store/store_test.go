package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shelfmap/shelfmap/internal/model"
)

// openTestStore creates a store in a temporary directory.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return s
}

// mustCreate inserts a node and fails the test on error.
func mustCreate(t *testing.T, s *Store, node *model.CategoryNode) *model.CategoryNode {
	t.Helper()

	if _, err := s.CreateIfAbsent(context.Background(), node); err != nil {
		t.Fatalf("failed to create node: %v", err)
	}
	return node
}

// TestOpenRequiresExistingDatabase tests the mode=rw open path.
func TestOpenRequiresExistingDatabase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := Open(dir, Options{CreateIfNotExists: false})
	if err == nil {
		t.Fatal("expected error opening missing database")
	}

	s, err := Open(dir, DefaultOptions())
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	s, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		t.Fatalf("failed to reopen existing database: %v", err)
	}
	_ = s.Close()
}

// TestCreateIfAbsent tests node creation and dedup.
func TestCreateIfAbsent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	node := &model.CategoryNode{
		RetailerID: "acme",
		Name:       "Women",
		URL:        "https://acme.test/c/women",
		Depth:      0,
	}

	created, err := s.CreateIfAbsent(ctx, node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true for new node")
	}
	if node.ID == 0 {
		t.Error("expected assigned ID")
	}
	if node.Status != model.StatusPending {
		t.Errorf("status = %q, expected pending", node.Status)
	}

	// Second insert with the same key is a no-op that returns the
	// existing row.
	dup := &model.CategoryNode{
		RetailerID: "acme",
		Name:       "Women again",
		URL:        "https://acme.test/c/women",
		Depth:      3,
	}
	created, err = s.CreateIfAbsent(ctx, dup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected created=false for duplicate")
	}
	if dup.ID != node.ID {
		t.Errorf("duplicate resolved to ID %d, expected %d", dup.ID, node.ID)
	}
	if dup.Name != "Women" {
		t.Errorf("duplicate returned name %q, expected stored name", dup.Name)
	}
	if dup.Depth != 0 {
		t.Errorf("duplicate returned depth %d, expected stored depth 0", dup.Depth)
	}

	// Same URL under a different retailer is a distinct node.
	other := &model.CategoryNode{
		RetailerID: "bmart",
		Name:       "Women",
		URL:        "https://acme.test/c/women",
		Depth:      0,
	}
	created, err = s.CreateIfAbsent(ctx, other)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true for different retailer")
	}
}

// TestStatusTransitions tests SetStatus and MarkAttempt.
func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	node := mustCreate(t, s, &model.CategoryNode{
		RetailerID: "acme",
		Name:       "Shoes",
		URL:        "https://acme.test/c/shoes",
		Depth:      0,
	})

	if err := s.MarkAttempt(ctx, node.ID, time.Now()); err != nil {
		t.Fatalf("MarkAttempt failed: %v", err)
	}

	got, err := s.Get(ctx, node.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.StatusInProgress {
		t.Errorf("status = %q, expected in_progress", got.Status)
	}
	if got.AttemptCount != 1 {
		t.Errorf("attemptCount = %d, expected 1", got.AttemptCount)
	}
	if got.LastAttemptAt == nil {
		t.Error("expected lastAttemptAt to be set")
	}

	if err := s.SetStatus(ctx, node.ID, model.StatusProcessedLeaf); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	got, err = s.Get(ctx, node.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.StatusProcessedLeaf {
		t.Errorf("status = %q, expected processed_leaf", got.Status)
	}

	if err := s.SetStatus(ctx, node.ID, model.Status("bogus")); err == nil {
		t.Error("expected error for invalid status")
	}
	if err := s.SetStatus(ctx, 9999, model.StatusPending); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing node, got %v", err)
	}
}

// TestResetInProgress tests the resume reset.
func TestResetInProgress(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "A", URL: "https://acme.test/a", Depth: 0})
	b := mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "B", URL: "https://acme.test/b", Depth: 0})

	if err := s.MarkAttempt(ctx, a.ID, time.Now()); err != nil {
		t.Fatalf("MarkAttempt failed: %v", err)
	}
	if err := s.SetStatus(ctx, b.ID, model.StatusProcessedLeaf); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	reset, err := s.ResetInProgress(ctx)
	if err != nil {
		t.Fatalf("ResetInProgress failed: %v", err)
	}
	if reset != 1 {
		t.Errorf("reset %d nodes, expected 1", reset)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status = %q, expected pending", got.Status)
	}
	// Attempt count survives the reset.
	if got.AttemptCount != 1 {
		t.Errorf("attemptCount = %d, expected 1 after reset", got.AttemptCount)
	}
}

// TestResetFailed tests the re-run reset.
func TestResetFailed(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "A", URL: "https://acme.test/a", Depth: 0})
	b := mustCreate(t, s, &model.CategoryNode{RetailerID: "bmart", Name: "B", URL: "https://bmart.test/b", Depth: 0})

	for _, node := range []*model.CategoryNode{a, b} {
		if err := s.SetStatus(ctx, node.ID, model.StatusFailedPermanent); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
	}

	reset, err := s.ResetFailed(ctx, "acme")
	if err != nil {
		t.Fatalf("ResetFailed failed: %v", err)
	}
	if reset != 1 {
		t.Errorf("reset %d nodes, expected 1", reset)
	}

	got, err := s.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.StatusFailedPermanent {
		t.Error("other retailer's node should remain failed")
	}
}

// TestHierarchyQueries tests parent/child navigation and ancestry.
func TestHierarchyQueries(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	root := mustCreate(t, s, &model.CategoryNode{
		RetailerID: "acme", Name: "Root", URL: "https://acme.test/", Depth: 0,
	})
	child := mustCreate(t, s, &model.CategoryNode{
		RetailerID: "acme", Name: "Women", URL: "https://acme.test/c/women",
		ParentID: &root.ID, Depth: 1,
	})
	grandchild := mustCreate(t, s, &model.CategoryNode{
		RetailerID: "acme", Name: "Shoes", URL: "https://acme.test/c/women/shoes",
		ParentID: &child.ID, Depth: 2,
	})

	roots, err := s.Roots(ctx, "acme")
	if err != nil {
		t.Fatalf("Roots failed: %v", err)
	}
	if len(roots) != 1 || roots[0].ID != root.ID {
		t.Errorf("Roots = %+v, expected just the root", roots)
	}

	children, err := s.Children(ctx, root.ID)
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if len(children) != 1 || children[0].ID != child.ID {
		t.Errorf("Children = %+v, expected just Women", children)
	}

	chain, err := s.Ancestry(ctx, grandchild.ID)
	if err != nil {
		t.Fatalf("Ancestry failed: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("ancestry length = %d, expected 3", len(chain))
	}
	if chain[0].ID != grandchild.ID || chain[1].ID != child.ID || chain[2].ID != root.ID {
		t.Error("ancestry chain out of order")
	}

	// Depth invariant holds across the stored chain.
	for i := 0; i < len(chain)-1; i++ {
		if err := chain[i].ValidateHierarchy(chain[i+1]); err != nil {
			t.Errorf("hierarchy invariant violated: %v", err)
		}
	}
}

// TestProcessedQuery tests the downstream-visible query surface.
func TestProcessedQuery(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	leaf := mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "L", URL: "https://acme.test/l", Depth: 0})
	parent := mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "P", URL: "https://acme.test/p", Depth: 0})
	failed := mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "F", URL: "https://acme.test/f", Depth: 0})
	mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "Pending", URL: "https://acme.test/x", Depth: 0})

	if err := s.SetStatus(ctx, leaf.ID, model.StatusProcessedLeaf); err != nil {
		t.Fatal(err)
	}
	if err := s.SetStatus(ctx, parent.ID, model.StatusProcessedHasChildren); err != nil {
		t.Fatal(err)
	}
	if err := s.SetStatus(ctx, failed.ID, model.StatusFailedPermanent); err != nil {
		t.Fatal(err)
	}

	processed, err := s.Processed(ctx, "acme")
	if err != nil {
		t.Fatalf("Processed failed: %v", err)
	}
	if len(processed) != 2 {
		t.Fatalf("Processed returned %d nodes, expected 2", len(processed))
	}
	for _, node := range processed {
		if !node.Status.DownstreamVisible() {
			t.Errorf("node %d has status %q, not downstream visible", node.ID, node.Status)
		}
	}
}

// TestCounts tests the statistics queries.
func TestCounts(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	root := mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "R", URL: "https://acme.test/", Depth: 0})
	mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "A", URL: "https://acme.test/a", ParentID: &root.ID, Depth: 1})
	mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "B", URL: "https://acme.test/b", ParentID: &root.ID, Depth: 1})
	if err := s.SetStatus(ctx, root.ID, model.StatusProcessedHasChildren); err != nil {
		t.Fatal(err)
	}

	byStatus, err := s.CountByStatus(ctx, "acme")
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if byStatus[model.StatusPending] != 2 {
		t.Errorf("pending count = %d, expected 2", byStatus[model.StatusPending])
	}
	if byStatus[model.StatusProcessedHasChildren] != 1 {
		t.Errorf("processed_has_children count = %d, expected 1", byStatus[model.StatusProcessedHasChildren])
	}

	byDepth, err := s.CountByDepth(ctx, "acme")
	if err != nil {
		t.Fatalf("CountByDepth failed: %v", err)
	}
	if byDepth[0] != 1 || byDepth[1] != 2 {
		t.Errorf("byDepth = %v, expected {0:1, 1:2}", byDepth)
	}
}

// TestGetNotFound tests the sentinel error.
func TestGetNotFound(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	if _, err := s.Get(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetByURL(context.Background(), "acme", "https://acme.test/none"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestRetailers tests retailer enumeration.
func TestRetailers(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	ids, err := s.Retailers(ctx)
	if err != nil {
		t.Fatalf("Retailers failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no retailers in empty store, got %v", ids)
	}

	mustCreate(t, s, &model.CategoryNode{RetailerID: "megamart", Name: "R", URL: "https://megamart.test/", Depth: 0})
	mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "R", URL: "https://acme.test/", Depth: 0})
	mustCreate(t, s, &model.CategoryNode{RetailerID: "acme", Name: "A", URL: "https://acme.test/a", Depth: 1})

	ids, err = s.Retailers(ctx)
	if err != nil {
		t.Fatalf("Retailers failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "acme" || ids[1] != "megamart" {
		t.Errorf("Retailers = %v, expected [acme megamart]", ids)
	}
}
