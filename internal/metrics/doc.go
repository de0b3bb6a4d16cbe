// Package metrics exposes Prometheus instrumentation for crawl runs.
//
// Collectors live on a Metrics struct instead of package-level globals
// so tests can create isolated registries and the whole subsystem stays
// optional: every method is safe to call on a nil receiver and does
// nothing, which lets the crawler run without metrics wired at all.
package metrics
