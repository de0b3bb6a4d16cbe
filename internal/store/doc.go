// Package store provides SQLite-based persistence for the category
// hierarchy.
//
// The Store owns every CategoryNode discovered during a run: creation,
// status transitions, and the query surface the downstream product
// scraper reads (processed nodes with resolvable ancestry).
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
//  1. No external dependencies - the database is a single file
//  2. CGO-free implementation allows easy cross-compilation
//  3. The UNIQUE(retailer_id, url) constraint gives us node dedup
//     transactionally, without application-level locking
//  4. WAL mode provides good concurrent read performance
package store
