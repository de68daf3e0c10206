package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitewatch/internal/model"
)

// SiteDB provides SQLite-based storage for snapshots, change history,
// and crawl run records.
//
// Design decision: One database file for all watched domains rather
// than a file per domain. Cross-domain queries (the change digest, the
// domain list) stay single queries, and backup is one file copy.
type SiteDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures SiteDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. Recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a SiteDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*SiteDB, error) {
	dbPath := filepath.Join(dbDir, "sitewatch.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
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

	// SQLite supports only one writer; a single connection avoids
	// SQLITE_BUSY under concurrent domain runs.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &SiteDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *SiteDB) Close() error {
	return sdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (sdb *SiteDB) createTables() error {
	schema := `
	-- Watched domains registered via the watch file or CLI
	CREATE TABLE IF NOT EXISTS domains (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root_url TEXT NOT NULL UNIQUE,
		scope_host TEXT NOT NULL,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_domains_host ON domains(scope_host);

	-- Exactly one live snapshot per canonical URL
	CREATE TABLE IF NOT EXISTS snapshots (
		url TEXT PRIMARY KEY,
		scope_host TEXT NOT NULL,
		digest TEXT NOT NULL,
		text TEXT NOT NULL,
		title TEXT,
		links TEXT,
		structure TEXT,
		live INTEGER NOT NULL DEFAULT 1,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_host ON snapshots(scope_host);
	CREATE INDEX IF NOT EXISTS idx_snapshots_live ON snapshots(scope_host, live);

	-- Append-only change history
	CREATE TABLE IF NOT EXISTS changes (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		scope_host TEXT NOT NULL,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		similarity REAL,
		diff TEXT,
		structural TEXT,
		detected_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_changes_host ON changes(scope_host, detected_at);
	CREATE INDEX IF NOT EXISTS idx_changes_run ON changes(run_id);

	-- One row per finished crawl run
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		scope_host TEXT NOT NULL,
		root_url TEXT NOT NULL,
		state TEXT NOT NULL,
		pages INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		started_at DATETIME,
		finished_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON crawl_runs(scope_host, started_at);

	-- Per-run visit log, one row per unique canonical URL
	CREATE TABLE IF NOT EXISTS visit_log (
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		status_code INTEGER,
		PRIMARY KEY (run_id, url)
	);
	`

	if _, err := sdb.db.ExecContext(context.Background(), schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// UpsertDomain registers a watched domain, updating the scope host if
// the root URL is already known.
func (sdb *SiteDB) UpsertDomain(ctx context.Context, rootURL, scopeHost string) error {
	query := `
	INSERT INTO domains (root_url, scope_host)
	VALUES (?, ?)
	ON CONFLICT(root_url) DO UPDATE SET scope_host = excluded.scope_host
	`
	if _, err := sdb.db.ExecContext(ctx, query, rootURL, scopeHost); err != nil {
		return fmt.Errorf("failed to upsert domain: %w", err)
	}
	return nil
}

// Domain is one registered watched domain.
type Domain struct {
	ID        int64
	RootURL   string
	ScopeHost string
	AddedAt   time.Time
}

// ListDomains returns all registered domains ordered by root URL.
func (sdb *SiteDB) ListDomains(ctx context.Context) ([]Domain, error) {
	rows, err := sdb.db.QueryContext(ctx,
		`SELECT id, root_url, scope_host, added_at FROM domains ORDER BY root_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []Domain
	for rows.Next() {
		var d Domain
		var addedAt string
		if err := rows.Scan(&d.ID, &d.RootURL, &d.ScopeHost, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		d.AddedAt = parseTimestamp(addedAt)
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// PutSnapshot stores the live snapshot for a URL, replacing any
// previous one and reactivating the URL if it had been marked removed.
func (sdb *SiteDB) PutSnapshot(ctx context.Context, scopeHost string, snapshot *model.PageSnapshot) error {
	linksJSON, err := json.Marshal(snapshot.Links)
	if err != nil {
		return fmt.Errorf("failed to serialize links: %w", err)
	}

	var structureJSON any
	if len(snapshot.Structure) > 0 {
		encoded, serr := json.Marshal(snapshot.Structure)
		if serr != nil {
			return fmt.Errorf("failed to serialize structure: %w", serr)
		}
		structureJSON = string(encoded)
	}

	query := `
	INSERT INTO snapshots (url, scope_host, digest, text, title, links, structure, live, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
	ON CONFLICT(url) DO UPDATE SET
		scope_host = excluded.scope_host,
		digest = excluded.digest,
		text = excluded.text,
		title = excluded.title,
		links = excluded.links,
		structure = excluded.structure,
		live = 1,
		fetched_at = excluded.fetched_at
	`
	_, err = sdb.db.ExecContext(ctx, query,
		snapshot.URL,
		scopeHost,
		snapshot.Digest,
		snapshot.Text,
		snapshot.Title,
		string(linksJSON),
		structureJSON,
		snapshot.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the stored snapshot for a canonical URL, or nil
// when the URL has never been snapshotted. Removed URLs still return
// their last snapshot; reappearing pages are compared against it.
func (sdb *SiteDB) GetSnapshot(ctx context.Context, url string) (*model.PageSnapshot, error) {
	query := `
	SELECT url, digest, text, title, links, structure, fetched_at
	FROM snapshots
	WHERE url = ?
	`

	var snapshot model.PageSnapshot
	var linksJSON, structureJSON sql.NullString
	var fetchedAt string

	err := sdb.db.QueryRowContext(ctx, query, url).Scan(
		&snapshot.URL,
		&snapshot.Digest,
		&snapshot.Text,
		&snapshot.Title,
		&linksJSON,
		&structureJSON,
		&fetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if linksJSON.Valid && linksJSON.String != "" {
		if err := json.Unmarshal([]byte(linksJSON.String), &snapshot.Links); err != nil {
			return nil, fmt.Errorf("failed to deserialize links: %w", err)
		}
	}
	if structureJSON.Valid && structureJSON.String != "" {
		if err := json.Unmarshal([]byte(structureJSON.String), &snapshot.Structure); err != nil {
			return nil, fmt.Errorf("failed to deserialize structure: %w", err)
		}
	}
	snapshot.FetchedAt = parseTimestamp(fetchedAt)
	return &snapshot, nil
}

// GetLiveURLs returns the canonical URLs currently considered live for
// the scope host, ordered for deterministic reconciliation.
func (sdb *SiteDB) GetLiveURLs(ctx context.Context, scopeHost string) ([]string, error) {
	rows, err := sdb.db.QueryContext(ctx,
		`SELECT url FROM snapshots WHERE scope_host = ? AND live = 1 ORDER BY url`, scopeHost)
	if err != nil {
		return nil, fmt.Errorf("failed to get live URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan URL: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// MarkRemoved flags a URL as no longer live. Its snapshot is kept so a
// reappearing page can be diffed against its last-known content.
func (sdb *SiteDB) MarkRemoved(ctx context.Context, url string) error {
	if _, err := sdb.db.ExecContext(ctx,
		`UPDATE snapshots SET live = 0 WHERE url = ?`, url); err != nil {
		return fmt.Errorf("failed to mark removed: %w", err)
	}
	return nil
}

// PutChange appends a change record to the history.
func (sdb *SiteDB) PutChange(ctx context.Context, runID, scopeHost string, change *model.ChangeRecord) error {
	query := `
	INSERT INTO changes (id, run_id, scope_host, url, kind, similarity, diff, structural, detected_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var similarity any
	if change.Similarity != nil {
		similarity = *change.Similarity
	}
	var structural any
	if change.Structural != nil {
		encoded, err := json.Marshal(change.Structural)
		if err != nil {
			return fmt.Errorf("failed to serialize structural diff: %w", err)
		}
		structural = string(encoded)
	}
	_, err := sdb.db.ExecContext(ctx, query,
		change.ID,
		runID,
		scopeHost,
		change.URL,
		string(change.Kind),
		similarity,
		change.Diff,
		structural,
		change.DetectedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put change: %w", err)
	}
	return nil
}

// ChangeFilter narrows a change history query. Zero values mean no
// filtering on that axis.
type ChangeFilter struct {
	// ScopeHost limits results to one watched domain.
	ScopeHost string

	// Since excludes changes detected before this time.
	Since time.Time

	// Kind limits results to one change kind.
	Kind model.ChangeKind

	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// GetChanges returns change records matching the filter, newest first.
func (sdb *SiteDB) GetChanges(ctx context.Context, filter ChangeFilter) ([]*model.ChangeRecord, error) {
	query := `SELECT id, url, kind, similarity, diff, structural, detected_at FROM changes WHERE 1=1`
	var args []any

	if filter.ScopeHost != "" {
		query += ` AND scope_host = ?`
		args = append(args, filter.ScopeHost)
	}
	if !filter.Since.IsZero() {
		query += ` AND detected_at >= ?`
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY detected_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get changes: %w", err)
	}
	defer rows.Close()

	var changes []*model.ChangeRecord
	for rows.Next() {
		var c model.ChangeRecord
		var kind string
		var similarity sql.NullFloat64
		var diff, structural sql.NullString
		var detectedAt string
		if err := rows.Scan(&c.ID, &c.URL, &kind, &similarity, &diff, &structural, &detectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		c.Kind = model.ChangeKind(kind)
		if similarity.Valid {
			v := similarity.Float64
			c.Similarity = &v
		}
		c.Diff = diff.String
		if structural.Valid && structural.String != "" {
			if err := json.Unmarshal([]byte(structural.String), &c.Structural); err != nil {
				return nil, fmt.Errorf("failed to deserialize structural diff: %w", err)
			}
		}
		c.DetectedAt = parseTimestamp(detectedAt)
		changes = append(changes, &c)
	}
	return changes, rows.Err()
}

// SaveRun records a finished crawl run: the summary row plus the full
// visit log.
func (sdb *SiteDB) SaveRun(ctx context.Context, result *model.CrawlRunResult) error {
	query := `
	INSERT INTO crawl_runs (id, scope_host, root_url, state, pages, failures, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := sdb.db.ExecContext(ctx, query,
		result.ID,
		result.Target.ScopeHost,
		result.Target.RootURL,
		string(result.State),
		result.PagesCrawled(),
		result.Failures,
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		result.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for _, u := range result.VisitedOrder {
		visit := result.Visits[u]
		_, err := sdb.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO visit_log (run_id, url, depth, outcome, status_code) VALUES (?, ?, ?, ?, ?)`,
			result.ID, visit.URL, visit.Depth, string(visit.Outcome), visit.StatusCode)
		if err != nil {
			return fmt.Errorf("failed to save visit log: %w", err)
		}
	}
	return nil
}

// RunSummary is one row of crawl run history.
type RunSummary struct {
	ID         string
	ScopeHost  string
	RootURL    string
	State      model.RunState
	Pages      int
	Failures   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// GetRunHistory returns run summaries for the scope host, newest
// first, capped at limit (zero means no cap).
func (sdb *SiteDB) GetRunHistory(ctx context.Context, scopeHost string, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, scope_host, root_url, state, pages, failures, started_at, finished_at
	FROM crawl_runs
	WHERE scope_host = ?
	ORDER BY started_at DESC
	`
	args := []any{scopeHost}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var state, startedAt, finishedAt string
		if err := rows.Scan(&r.ID, &r.ScopeHost, &r.RootURL, &state, &r.Pages, &r.Failures, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.State = model.RunState(state)
		r.StartedAt = parseTimestamp(startedAt)
		r.FinishedAt = parseTimestamp(finishedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// timestampFormats lists the formats SQLite may hand back depending on
// how the value was written.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats, returning zero time when none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
