package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/shelfmap/shelfmap/internal/model"
)

// DBFileName is the SQLite database file name inside the store directory.
const DBFileName = "shelfmap.db"

// ErrNotFound is returned when a requested node does not exist.
var ErrNotFound = errors.New("category node not found")

// Store provides SQLite-backed persistence for category nodes.
// It manages connection pooling and is safe for concurrent use; SQLite
// serializes writes through the single connection.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. Recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a Store at the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error
// is returned; the tree command uses this to avoid creating empty stores.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports only one writer; multiple readers go through WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *Store) createTables() error {
	schema := `
	-- Category nodes form the discovered hierarchy, parent-linked.
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		retailer_id TEXT NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		parent_id INTEGER REFERENCES categories(id),
		depth INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		discovered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_attempt_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		UNIQUE(retailer_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_categories_retailer ON categories(retailer_id);
	CREATE INDEX IF NOT EXISTS idx_categories_status ON categories(status);
	CREATE INDEX IF NOT EXISTS idx_categories_parent ON categories(parent_id);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// CreateIfAbsent inserts the node unless one already exists for its
// (retailerID, url). On return the node's ID, Status, Depth, ParentID,
// and AttemptCount reflect the stored row, whether it was just created
// or already present. Returns true when a new row was inserted.
//
// Design decision: Dedup rides on the UNIQUE constraint rather than a
// SELECT-then-INSERT so concurrent workers discovering the same child
// cannot race into duplicate rows.
func (s *Store) CreateIfAbsent(ctx context.Context, node *model.CategoryNode) (bool, error) {
	if node.Status == "" {
		node.Status = model.StatusPending
	}

	result, err := s.db.ExecContext(ctx, `
	INSERT INTO categories (retailer_id, name, url, parent_id, depth, status)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(retailer_id, url) DO NOTHING
	`,
		node.RetailerID,
		node.Name,
		node.URL,
		node.ParentID,
		node.Depth,
		string(node.Status),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert category: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	stored, err := s.GetByURL(ctx, node.RetailerID, node.URL)
	if err != nil {
		return false, err
	}
	*node = *stored

	return rows > 0, nil
}

// Get retrieves a node by ID.
func (s *Store) Get(ctx context.Context, id int64) (*model.CategoryNode, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM categories WHERE id = ?", id)
	return scanNode(row)
}

// GetByURL retrieves a node by its dedup key.
func (s *Store) GetByURL(ctx context.Context, retailerID, url string) (*model.CategoryNode, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+" FROM categories WHERE retailer_id = ? AND url = ?",
		retailerID, url,
	)
	return scanNode(row)
}

// SetStatus transitions a node to the given status.
func (s *Store) SetStatus(ctx context.Context, id int64, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE categories SET status = ? WHERE id = ?",
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return nil
}

// MarkAttempt records a worker claiming the node: status moves to
// in_progress, the attempt counter increments, and last_attempt_at is
// stamped.
func (s *Store) MarkAttempt(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
	UPDATE categories
	SET status = ?, attempt_count = attempt_count + 1, last_attempt_at = ?
	WHERE id = ?
	`,
		string(model.StatusInProgress),
		at.UTC().Format("2006-01-02 15:04:05"),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark attempt: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return nil
}

// ResetInProgress resets every in_progress node back to pending. Called
// during resume: a node left in_progress at snapshot time had its claim
// lost with the crashed process.
func (s *Store) ResetInProgress(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE categories SET status = ? WHERE status = ?",
		string(model.StatusPending), string(model.StatusInProgress),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset in-progress nodes: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}
	return rows, nil
}

// ResetFailed resets failed_permanent nodes of a retailer back to
// pending, so a re-run retries them. Pass an empty retailerID to reset
// across all retailers.
func (s *Store) ResetFailed(ctx context.Context, retailerID string) (int64, error) {
	query := "UPDATE categories SET status = ?, attempt_count = 0 WHERE status = ?"
	args := []any{string(model.StatusPending), string(model.StatusFailedPermanent)}
	if retailerID != "" {
		query += " AND retailer_id = ?"
		args = append(args, retailerID)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed nodes: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}
	return rows, nil
}

// ListByStatus returns a retailer's nodes in any of the given statuses,
// ordered by depth then ID. An empty retailerID matches all retailers.
func (s *Store) ListByStatus(ctx context.Context, retailerID string, statuses ...model.Status) ([]*model.CategoryNode, error) {
	if len(statuses) == 0 {
		return nil, errors.New("at least one status is required")
	}

	query := selectColumns + " FROM categories WHERE status IN ("
	args := make([]any, 0, len(statuses)+1)
	for i, status := range statuses {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, string(status))
	}
	query += ")"
	if retailerID != "" {
		query += " AND retailer_id = ?"
		args = append(args, retailerID)
	}
	query += " ORDER BY depth, id"

	return s.queryNodes(ctx, query, args...)
}

// Processed returns a retailer's downstream-visible nodes: those with
// status processed_leaf or processed_has_children. This is the query
// surface the product-scraping stage consumes.
func (s *Store) Processed(ctx context.Context, retailerID string) ([]*model.CategoryNode, error) {
	return s.ListByStatus(ctx, retailerID, model.StatusProcessedLeaf, model.StatusProcessedHasChildren)
}

// Children returns the direct children of a node, ordered by ID.
func (s *Store) Children(ctx context.Context, parentID int64) ([]*model.CategoryNode, error) {
	return s.queryNodes(ctx,
		selectColumns+" FROM categories WHERE parent_id = ? ORDER BY id",
		parentID,
	)
}

// Roots returns a retailer's depth-0 nodes, ordered by ID.
func (s *Store) Roots(ctx context.Context, retailerID string) ([]*model.CategoryNode, error) {
	return s.queryNodes(ctx,
		selectColumns+" FROM categories WHERE retailer_id = ? AND parent_id IS NULL ORDER BY id",
		retailerID,
	)
}

// Retailers returns the distinct retailer IDs present in the store,
// sorted alphabetically.
func (s *Store) Retailers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT retailer_id FROM categories ORDER BY retailer_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query retailers: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan retailer: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Ancestry returns the chain from the given node up to its root, node
// first. Each element's depth is one less than its predecessor's.
func (s *Store) Ancestry(ctx context.Context, id int64) ([]*model.CategoryNode, error) {
	chain := make([]*model.CategoryNode, 0)
	for {
		node, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, node)
		if node.ParentID == nil {
			return chain, nil
		}
		id = *node.ParentID
	}
}

// CountByStatus returns node counts per status for a retailer. An empty
// retailerID counts across all retailers.
func (s *Store) CountByStatus(ctx context.Context, retailerID string) (map[model.Status]int, error) {
	query := "SELECT status, COUNT(*) FROM categories"
	args := []any{}
	if retailerID != "" {
		query += " WHERE retailer_id = ?"
		args = append(args, retailerID)
	}
	query += " GROUP BY status"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[model.Status(status)] = count
	}
	return counts, rows.Err()
}

// CountByDepth returns node counts per depth for a retailer. An empty
// retailerID counts across all retailers.
func (s *Store) CountByDepth(ctx context.Context, retailerID string) (map[int]int, error) {
	query := "SELECT depth, COUNT(*) FROM categories"
	args := []any{}
	if retailerID != "" {
		query += " WHERE retailer_id = ?"
		args = append(args, retailerID)
	}
	query += " GROUP BY depth"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count by depth: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var depth, count int
		if err := rows.Scan(&depth, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[depth] = count
	}
	return counts, rows.Err()
}

// selectColumns is the shared column list for node queries.
const selectColumns = `
SELECT id, retailer_id, name, url, parent_id, depth, status, discovered_at, last_attempt_at, attempt_count`

// rowScanner abstracts sql.Row and sql.Rows for scanNode.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanNode scans one category row.
func scanNode(row rowScanner) (*model.CategoryNode, error) {
	var node model.CategoryNode
	var status, discoveredAt string
	var parentID sql.NullInt64
	var lastAttemptAt sql.NullString

	err := row.Scan(
		&node.ID,
		&node.RetailerID,
		&node.Name,
		&node.URL,
		&parentID,
		&node.Depth,
		&status,
		&discoveredAt,
		&lastAttemptAt,
		&node.AttemptCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}

	node.Status = model.Status(status)
	if parentID.Valid {
		node.ParentID = &parentID.Int64
	}
	node.DiscoveredAt = parseTimestamp(discoveredAt)
	if lastAttemptAt.Valid && lastAttemptAt.String != "" {
		t := parseTimestamp(lastAttemptAt.String)
		node.LastAttemptAt = &t
	}

	return &node, nil
}

// queryNodes runs a multi-row node query.
func (s *Store) queryNodes(ctx context.Context, query string, args ...any) ([]*model.CategoryNode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	nodes := make([]*model.CategoryNode, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite may return timestamps in different formats depending on
// configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
