// Package main provides the entry point for the shelfmap CLI.
//
// shelfmap discovers the category hierarchy of e-commerce retailers.
// It crawls category listing pages starting from configured seed URLs,
// persists the discovered tree to SQLite, and survives interruption
// through frontier checkpoints.
//
// Usage:
//
//	shelfmap discover
//	shelfmap tree [retailer-id]
//
// See --help for all available options.
package main

// main is the entry point for shelfmap.
func main() {
	Execute()
}
