package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoRetailers is returned when the retailers file defines no
	// retailers. A crawl with nothing to crawl is a configuration
	// mistake, not an empty run.
	ErrNoRetailers = errors.New("no retailers configured: add at least one retailer with seed URLs")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the worker count is not
	// positive. Zero workers would mean no crawling at all.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxDepth is returned when the depth cap is negative.
	// Depth 0 is valid and means seeds only.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidFailureRate is returned when the failure-rate threshold
	// is outside [0, 1].
	ErrInvalidFailureRate = errors.New("invalid failure rate threshold: must be between 0 and 1")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)

// MissingSeedsError reports a retailer entry with no seed URLs.
// It carries the retailer ID so the user knows which entry to fix.
type MissingSeedsError struct {
	RetailerID string
}

// Error implements the error interface.
func (e *MissingSeedsError) Error() string {
	return fmt.Sprintf("retailer %q has no seed URLs", e.RetailerID)
}
