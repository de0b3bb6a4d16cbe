// Package config provides configuration structures and utilities for shelfmap.
// It defines the main configuration options for category discovery runs,
// per-retailer crawl settings, and report generation preferences.
package config
