package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen for polite crawling of production retail
// sites, where anti-bot systems punish aggressive clients.
const (
	// DefaultTimeout is the per-request timeout for page exploration.
	// Retail category pages are usually fast, but server-side rendering
	// behind a challenge can take tens of seconds.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxDepth of 8 covers real retailer taxonomies, which
	// rarely exceed five levels. The cap exists to stop runaway
	// recursion on sites whose category pages link to filtered views
	// of themselves.
	DefaultMaxDepth = 8

	// DefaultConcurrency of 8 workers balances throughput with the
	// risk of tripping rate limits. Per-retailer ceilings keep one site
	// from absorbing all workers regardless of this value.
	DefaultConcurrency = 8

	// DefaultRetailerLimit is the per-retailer in-flight ceiling.
	// Two concurrent requests per site is conservative enough that
	// most anti-bot systems ignore it.
	DefaultRetailerLimit = 2

	// AppName is the application name used for XDG directory paths.
	AppName = "shelfmap"

	// DefaultUserAgent identifies the crawler in HTTP requests.
	// A descriptive User-Agent lets operators identify crawl traffic
	// in their logs.
	DefaultUserAgent = "shelfmap/1.0 (+https://github.com/shelfmap/shelfmap)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for category listing pages while preventing
	// memory exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultCheckpointEveryN snapshots the frontier after this many
	// completed tasks.
	DefaultCheckpointEveryN = 25

	// DefaultCheckpointInterval snapshots the frontier after this much
	// elapsed time, whichever trigger fires first.
	DefaultCheckpointInterval = 30 * time.Second

	// DefaultFailureRateThreshold is the seed failure rate above which
	// a run exits non-zero. Half the seeds failing permanently almost
	// always means a blocked crawl, not a broken site.
	DefaultFailureRateThreshold = 0.5
)

// Config holds all configuration options for a crawl run.
// This struct is designed to be populated from CLI flags and the
// retailers file, then passed through the application via dependency
// injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Timeout is the per-request timeout for page exploration.
	Timeout time.Duration

	// MaxDepth is the maximum category depth to explore. Nodes at this
	// depth are recorded but their children are not fetched.
	MaxDepth int

	// Concurrency is the number of crawl workers.
	Concurrency int

	// RetailerLimit is the default per-retailer in-flight ceiling.
	// Individual retailers can override it in the retailers file.
	RetailerLimit int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, info and above are logged.
	Verbose bool

	// ConfigFilePath is the path to the retailers file.
	// If empty, the tool searches for .shelfmap in the current
	// directory and then in the user's home directory.
	ConfigFilePath string

	// Retailers holds retailer definitions loaded from the config file.
	Retailers *File

	// JSONReport enables JSON report output instead of the
	// human-readable format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of the
	// human-readable format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the run report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to the XDG data directory.
	DBDir string

	// CheckpointPath is the snapshot file location. Defaults to a file
	// in the XDG data directory.
	CheckpointPath string

	// CheckpointEveryN snapshots after this many completed tasks.
	CheckpointEveryN int

	// CheckpointInterval snapshots after this much elapsed time.
	CheckpointInterval time.Duration

	// Resume restores the frontier from the last checkpoint instead of
	// starting from seeds.
	Resume bool

	// ResetFailed re-enqueues permanently failed nodes before the run
	// starts, clearing their attempt counters.
	ResetFailed bool

	// FailureRateThreshold is the seed failure rate above which the
	// run exits non-zero. Zero disables the check.
	FailureRateThreshold float64

	// MetricsAddr is the listen address for the Prometheus endpoint
	// (e.g. ":9090"). Empty disables metrics serving.
	MetricsAddr string

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated to prevent memory
	// exhaustion. Set to 0 to use the default (5MB).
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout,
// concurrency). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:              DefaultTimeout,
		MaxDepth:             DefaultMaxDepth,
		Concurrency:          DefaultConcurrency,
		RetailerLimit:        DefaultRetailerLimit,
		CheckpointEveryN:     DefaultCheckpointEveryN,
		CheckpointInterval:   DefaultCheckpointInterval,
		FailureRateThreshold: DefaultFailureRateThreshold,
		UserAgent:            DefaultUserAgent,
		MaxBodySize:          DefaultMaxBodySize,
		DBDir:                XDGDataDir(),
		CheckpointPath:       filepath.Join(XDGDataDir(), "checkpoint.json"),
	}
}

// XDGDataDir returns the XDG data directory for shelfmap.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/shelfmap
// On macOS: ~/Library/Application Support/shelfmap
// On Windows: %LOCALAPPDATA%\shelfmap
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for shelfmap.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for shelfmap.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.Retailers == nil || len(c.Retailers.Retailers) == 0 {
		return ErrNoRetailers
	}

	for id, rc := range c.Retailers.Retailers {
		if len(rc.Seeds) == 0 {
			return &MissingSeedsError{RetailerID: id}
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.FailureRateThreshold < 0 || c.FailureRateThreshold > 1 {
		return ErrInvalidFailureRate
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
