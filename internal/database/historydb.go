package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/varnisher/internal/model"
)

const (
	// FileName is the name of the database file inside the database directory.
	FileName = "varnisher.db"

	// timestampLayout is fixed-width so that text ordering is time ordering.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// HistoryDB stores the history of purge and spider runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// Otherwise a missing database yields ErrDatabaseNotFound.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents modernc.org/sqlite from creating a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the path of the database file.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		target TEXT NOT NULL,
		proxy TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages_hit INTEGER DEFAULT 0,
		purged INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		fetch_failures INTEGER DEFAULT 0,
		interrupted INTEGER DEFAULT 0,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per purge request
	CREATE TABLE IF NOT EXISTS purges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		method TEXT NOT NULL,
		status_code INTEGER,
		outcome TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_purges_run ON purges(run_id);
	CREATE INDEX IF NOT EXISTS idx_purges_url ON purges(url);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is the summary row of a stored run.
type RunRecord struct {
	// ID is the run identifier.
	ID string

	// Command is the kind of run.
	Command model.Command

	// Target is the URL or hostname of the run.
	Target string

	// Proxy is the cache proxy address.
	Proxy string

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is when the run ended.
	FinishedAt time.Time

	// PagesHit is the number of pages fetched.
	PagesHit int

	// Purged is the number of successful purges.
	Purged int

	// Failed is the number of failed purges.
	Failed int

	// FetchFailures is the number of pages that could not be fetched.
	FetchFailures int

	// Interrupted is true if the run was canceled.
	Interrupted bool

	// Error is the error that ended the run, if any.
	Error string
}

// SaveRun stores report and its purges in one transaction.
func (hdb *HistoryDB) SaveRun(ctx context.Context, report *model.Report) (err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	summary := report.Summarize()

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, command, target, proxy, started_at, finished_at,
		pages_hit, purged, failed, fetch_failures, interrupted, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		string(report.Command),
		report.Target,
		report.Proxy,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		summary.PagesHit,
		summary.Purged,
		summary.Failed,
		summary.FetchFailures,
		summary.Interrupted,
		summary.Error,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for _, p := range report.SortedPurges() {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO purges (run_id, url, method, status_code, outcome, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			report.ID,
			p.URL,
			p.Method,
			p.StatusCode,
			string(p.Outcome),
			p.Error,
			p.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to save purge of %s: %w", p.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. An empty target lists every
// run; limit <= 0 means no limit.
func (hdb *HistoryDB) ListRuns(ctx context.Context, target string, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, command, target, proxy, started_at, finished_at,
		pages_hit, purged, failed, fetch_failures, interrupted, error
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if target != "" {
		query += " AND target = ?"
		args = append(args, target)
	}

	query += " ORDER BY started_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunRecord
	for rows.Next() {
		var (
			rec        RunRecord
			command    string
			proxy      sql.NullString
			startedAt  string
			finishedAt sql.NullString
			errMsg     sql.NullString
		)

		err := rows.Scan(
			&rec.ID,
			&command,
			&rec.Target,
			&proxy,
			&startedAt,
			&finishedAt,
			&rec.PagesHit,
			&rec.Purged,
			&rec.Failed,
			&rec.FetchFailures,
			&rec.Interrupted,
			&errMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		rec.Command = model.Command(command)
		rec.Proxy = proxy.String
		rec.StartedAt = parseTimestamp(startedAt)
		rec.FinishedAt = parseTimestamp(finishedAt.String)
		rec.Error = errMsg.String
		results = append(results, rec)
	}

	return results, rows.Err()
}

// GetRun returns the full report of a run.
func (hdb *HistoryDB) GetRun(ctx context.Context, id string) (*model.Report, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// PurgeRecord is a stored purge request.
type PurgeRecord struct {
	// RunID is the run the purge belongs to.
	RunID string

	// StartedAt is the start of that run.
	StartedAt time.Time

	model.PurgeResult
}

// GetRunPurges returns the purges of one run, ordered by URL.
func (hdb *HistoryDB) GetRunPurges(ctx context.Context, runID string) ([]PurgeRecord, error) {
	return hdb.queryPurges(ctx, "p.run_id = ?", runID, "p.url")
}

// URLHistory returns every recorded purge of url, most recent run first.
func (hdb *HistoryDB) URLHistory(ctx context.Context, url string) ([]PurgeRecord, error) {
	return hdb.queryPurges(ctx, "p.url = ?", url, "r.started_at DESC")
}

func (hdb *HistoryDB) queryPurges(ctx context.Context, where string, arg any, order string) ([]PurgeRecord, error) {
	query := `
	SELECT p.run_id, r.started_at, p.url, p.method, p.status_code, p.outcome, p.error, p.duration_ms
	FROM purges p JOIN runs r ON r.id = p.run_id
	WHERE ` + where + `
	ORDER BY ` + order + `, p.id`

	rows, err := hdb.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query purges: %w", err)
	}
	defer rows.Close()

	var results []PurgeRecord
	for rows.Next() {
		var (
			rec        PurgeRecord
			startedAt  string
			outcome    string
			errMsg     sql.NullString
			durationMS int64
		)

		err := rows.Scan(
			&rec.RunID,
			&startedAt,
			&rec.URL,
			&rec.Method,
			&rec.StatusCode,
			&outcome,
			&errMsg,
			&durationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purge: %w", err)
		}

		rec.StartedAt = parseTimestamp(startedAt)
		rec.Outcome = model.Outcome(outcome)
		rec.Error = errMsg.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, rec)
	}

	return results, rows.Err()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
