package explorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfmap/shelfmap/internal/model"
)

// Explorer is the page-exploration capability consumed by the crawler.
// Given a category page URL it returns zero or more child-category
// candidates, or an Error describing why the page could not be explored.
//
// Implementations are expected to be slow, non-deterministic, and
// fallible; they must honor context cancellation.
type Explorer interface {
	Explore(ctx context.Context, url string) ([]model.ChildCandidate, error)
}

// Func adapts a plain function to the Explorer interface.
type Func func(ctx context.Context, url string) ([]model.ChildCandidate, error)

// Explore implements Explorer.
func (f Func) Explore(ctx context.Context, url string) ([]model.ChildCandidate, error) {
	return f(ctx, url)
}

// ErrorKind classifies exploration failures for the retry state machine.
type ErrorKind string

// Exploration failure kinds.
const (
	// KindTransient marks failures worth retrying with backoff.
	KindTransient ErrorKind = "transient"

	// KindChallenge marks site-side anti-bot gating. Retried with a long
	// fixed delay that does not count against the attempt budget.
	KindChallenge ErrorKind = "challenge"

	// KindPermanent marks failures that no retry can fix.
	KindPermanent ErrorKind = "permanent"
)

// Error is a typed exploration failure.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// URL is the page that failed to explore.
	URL string

	// Err is the underlying cause, may be nil.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("explore %s: %s failure", e.URL, e.Kind)
	}
	return fmt.Sprintf("explore %s: %s failure: %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a transient exploration failure.
func Transient(url string, err error) *Error {
	return &Error{Kind: KindTransient, URL: url, Err: err}
}

// Challenge wraps err as an anti-bot challenge failure.
func Challenge(url string, err error) *Error {
	return &Error{Kind: KindChallenge, URL: url, Err: err}
}

// Permanent wraps err as a permanent exploration failure.
func Permanent(url string, err error) *Error {
	return &Error{Kind: KindPermanent, URL: url, Err: err}
}

// KindOf extracts the failure kind from an error. Errors that are not
// explorer.Error values are treated as transient, the safe default: a
// retry budget still bounds them, while misclassifying a transient
// failure as permanent would silently drop a reachable category.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}
