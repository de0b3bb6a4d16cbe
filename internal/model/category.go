package model

import (
	"errors"
	"fmt"
	"time"
)

// Status represents the processing state of a CategoryNode.
type Status string

// Category node statuses.
//
// A node is created as StatusPending when first referenced, either as a
// seed root or as a child candidate discovered on its parent's page.
// A worker moves it to StatusInProgress while exploring it. Exploration
// that yields zero children ends in StatusProcessedLeaf, one or more
// children in StatusProcessedHasChildren. Nodes that exhaust their retry
// or challenge budget end in StatusFailedPermanent.
const (
	StatusPending              Status = "pending"
	StatusInProgress           Status = "in_progress"
	StatusProcessedLeaf        Status = "processed_leaf"
	StatusProcessedHasChildren Status = "processed_has_children"
	StatusFailedPermanent      Status = "failed_permanent"
)

// ErrDepthMismatch is returned when a node's depth does not match its
// position in the hierarchy.
var ErrDepthMismatch = errors.New("category depth does not match parent depth")

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusProcessedLeaf,
		StatusProcessedHasChildren, StatusFailedPermanent:
		return true
	}
	return false
}

// Terminal reports whether s is a final state that a run never revisits.
func (s Status) Terminal() bool {
	switch s {
	case StatusProcessedLeaf, StatusProcessedHasChildren, StatusFailedPermanent:
		return true
	}
	return false
}

// DownstreamVisible reports whether nodes with this status are exposed to
// the downstream product-scraping stage. Only fully processed nodes are
// visible; pending, in-flight, and failed nodes are not.
func (s Status) DownstreamVisible() bool {
	return s == StatusProcessedLeaf || s == StatusProcessedHasChildren
}

// CategoryNode is a single category record in a retailer's hierarchy.
//
// Nodes are unique per (RetailerID, URL). ParentID is nil only for
// depth-0 roots; otherwise Depth is exactly the parent's depth plus one.
// Nodes are never deleted during a run; re-runs reset eligible nodes back
// to StatusPending.
type CategoryNode struct {
	// ID is the stable identifier assigned on first persistence.
	ID int64

	// RetailerID identifies the site this node belongs to.
	RetailerID string

	// Name is the display name as discovered on the parent page.
	Name string

	// URL is the canonicalized absolute URL of the category page.
	URL string

	// ParentID references the parent node, nil for depth-0 roots.
	ParentID *int64

	// Depth is the distance from the retailer's root, starting at 0.
	Depth int

	// Status is the node's position in the processing lifecycle.
	Status Status

	// DiscoveredAt is when the node was first persisted.
	DiscoveredAt time.Time

	// LastAttemptAt is when a worker last claimed the node, nil if never.
	LastAttemptAt *time.Time

	// AttemptCount is the number of exploration attempts so far.
	// Challenge waits do not count as attempts.
	AttemptCount int
}

// ValidateHierarchy checks the depth/parent invariant against the given
// parent node. Pass nil for a root node.
func (n *CategoryNode) ValidateHierarchy(parent *CategoryNode) error {
	if parent == nil {
		if n.ParentID != nil {
			return fmt.Errorf("node %d has parent %d but no parent given: %w", n.ID, *n.ParentID, ErrDepthMismatch)
		}
		if n.Depth != 0 {
			return fmt.Errorf("root node %d has depth %d: %w", n.ID, n.Depth, ErrDepthMismatch)
		}
		return nil
	}
	if n.ParentID == nil {
		return fmt.Errorf("node %d at depth %d has no parent reference: %w", n.ID, n.Depth, ErrDepthMismatch)
	}
	if *n.ParentID != parent.ID {
		return fmt.Errorf("node %d references parent %d, expected %d: %w", n.ID, *n.ParentID, parent.ID, ErrDepthMismatch)
	}
	if n.Depth != parent.Depth+1 {
		return fmt.Errorf("node %d has depth %d under parent depth %d: %w", n.ID, n.Depth, parent.Depth, ErrDepthMismatch)
	}
	return nil
}

// ChildCandidate is a category candidate returned by a page explorer.
// The crawler core canonicalizes the URL and deduplicates against the
// store before persisting it as a new CategoryNode.
type ChildCandidate struct {
	// Name is the display name found on the page.
	Name string

	// URL is the candidate link, possibly relative to the explored page.
	URL string

	// ProductCount is the advertised product count, nil when the page
	// does not expose one.
	ProductCount *int
}
