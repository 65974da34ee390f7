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

	"github.com/bsddscan/bsddscan/internal/model"
)

// ClassDB provides SQLite-based storage for crawled class records and run
// history. Persisting runs lets users diff dictionary versions and resume
// analysis without re-crawling.
type ClassDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ClassDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ClassDB at the specified directory.
func Open(dbDir string, opts Options) (*ClassDB, error) {
	dbPath := filepath.Join(dbDir, "bsddscan.db")

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
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports only one writer; a second connection buys nothing
	// for this workload.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &ClassDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *ClassDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *ClassDB) createTables() error {
	schema := `
	-- One row per crawl run.
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_uri TEXT NOT NULL,
		class_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		waves INTEGER NOT NULL,
		truncated INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start ON crawl_runs(start_uri);
	CREATE INDEX IF NOT EXISTS idx_runs_finished ON crawl_runs(finished_at);

	-- One row per class URI; re-crawls refresh the stored record.
	CREATE TABLE IF NOT EXISTS classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uri TEXT NOT NULL UNIQUE,
		class_name TEXT NOT NULL,
		code TEXT NOT NULL,
		record_json TEXT NOT NULL,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id),
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_classes_code ON classes(code);
	CREATE INDEX IF NOT EXISTS idx_classes_run ON classes(run_id);

	-- Permanently failed identifiers per run, for gap reporting.
	CREATE TABLE IF NOT EXISTS failed_classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id),
		uri TEXT NOT NULL,
		error TEXT NOT NULL,
		attempts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failed_run ON failed_classes(run_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport persists a completed crawl: the run row, every collected class
// record (upsert by URI), and the permanent failures. Returns the run ID.
func (cdb *ClassDB) SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.

	result, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (start_uri, class_count, failed_count, waves, truncated, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.StartURI,
		report.ClassCount(),
		report.FailedCount(),
		report.Waves,
		boolToInt(report.Truncated),
		report.StartedAt.UTC().Format(time.RFC3339),
		report.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, class := range report.Classes {
		recordJSON, err := json.Marshal(class)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize class %s: %w", class.URL, err)
		}

		_, err = tx.ExecContext(ctx, `
		INSERT INTO classes (uri, class_name, code, record_json, run_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			class_name = excluded.class_name,
			code = excluded.code,
			record_json = excluded.record_json,
			run_id = excluded.run_id,
			updated_at = CURRENT_TIMESTAMP`,
			class.URL,
			class.ClassName,
			class.Code,
			string(recordJSON),
			runID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert class %s: %w", class.URL, err)
		}
	}

	for _, failed := range report.Failed {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO failed_classes (run_id, uri, error, attempts)
		VALUES (?, ?, ?, ?)`,
			runID, failed.URI, failed.Error, failed.Attempts,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert failed class %s: %w", failed.URI, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return runID, nil
}

// GetClass retrieves the stored record for a class URI.
// Returns nil without error when the class has never been crawled.
func (cdb *ClassDB) GetClass(ctx context.Context, uri string) (*model.ClassRecord, error) {
	var recordJSON string
	err := cdb.db.QueryRowContext(ctx,
		`SELECT record_json FROM classes WHERE uri = ?`, uri,
	).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	var record model.ClassRecord
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return nil, fmt.Errorf("failed to parse stored class: %w", err)
	}
	return &record, nil
}

// RunSummary is one row of crawl run history.
type RunSummary struct {
	ID          int64
	StartURI    string
	ClassCount  int
	FailedCount int
	Waves       int
	Truncated   bool
	StartedAt   time.Time
	FinishedAt  time.Time
}

// ListRuns returns crawl run history, most recent first.
func (cdb *ClassDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, start_uri, class_count, failed_count, waves, truncated, started_at, finished_at
	FROM crawl_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var truncated int
		var started, finished string

		if err := rows.Scan(&run.ID, &run.StartURI, &run.ClassCount, &run.FailedCount,
			&run.Waves, &truncated, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Truncated = truncated != 0
		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// parseTimestamp parses the timestamp formats SQLite may hand back.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// boolToInt stores booleans as SQLite integers.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
