package database

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/vincentbai/tsmcheck/internal/validator"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

type Database struct {
	db  *sql.DB
	now func() time.Time
}

// Run is one stored validation of an export.
type Run struct {
	ID        string
	Source    string
	CreatedAt time.Time
	Sessions  int
	Invalid   int
	Failed    int
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked". modernc applies
	// _pragma parameters on every new connection.
	db, err := sql.Open("sqlite", databasePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS runs(
	  id         TEXT    PRIMARY KEY,
	  source     TEXT    NOT NULL,
	  created_at INTEGER NOT NULL,
	  sessions   INTEGER NOT NULL,
	  invalid    INTEGER NOT NULL,
	  failed     INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS results(
	  id         INTEGER PRIMARY KEY,
	  run_id     TEXT    NOT NULL REFERENCES runs(id),
	  position   INTEGER NOT NULL,
	  name       TEXT    NOT NULL,
	  tag        TEXT    NOT NULL,
	  date       INTEGER NOT NULL,
	  windows    INTEGER NOT NULL,
	  valid      INTEGER NOT NULL CHECK (valid IN (0, 1)),
	  counted    INTEGER NOT NULL,
	  declared   INTEGER NOT NULL,
	  error      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created  ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_results_run   ON results(run_id, position);
	CREATE INDEX IF NOT EXISTS idx_results_valid ON results(valid);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// ValidateResult rejects values SQLite cannot store as signed integers.
func (d *Database) ValidateResult(result validator.Result) error {
	if result.Index < 0 {
		return fmt.Errorf("position must not be negative")
	}
	if result.Date > math.MaxInt64 {
		return fmt.Errorf("date %d exceeds storable range", result.Date)
	}
	if uint64(result.Verdict.Counted) > math.MaxInt64 || uint64(result.Verdict.Declared) > math.MaxInt64 {
		return fmt.Errorf("tab counts exceed storable range")
	}
	return nil
}

// InsertRun stores a run and all of its results in one transaction and
// returns the new run id.
func (d *Database) InsertRun(source string, results []validator.Result) (string, error) {
	if source == "" {
		return "", fmt.Errorf("source cannot be empty")
	}
	for _, result := range results {
		if err := d.ValidateResult(result); err != nil {
			return "", fmt.Errorf("invalid result: %w", err)
		}
	}

	runID := uuid.NewString()
	summary := validator.Summarize(results)

	transaction, err := d.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := transaction.Exec(`INSERT INTO runs(id, source, created_at, sessions, invalid, failed) VALUES(?,?,?,?,?,?)`,
		runID, source, d.now().UnixMilli(), summary.Total, summary.Invalid, summary.Failed); err != nil {
		_ = transaction.Rollback()
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	statement, err := transaction.Prepare(`INSERT INTO results(run_id, position, name, tag, date, windows, valid, counted, declared, error) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		_ = transaction.Rollback()
		return "", fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, result := range results {
		var errorText sql.NullString
		if result.Err != nil {
			errorText = sql.NullString{String: result.Err.Error(), Valid: true}
		}
		valid := result.Err == nil && result.Verdict.Valid
		if _, err := statement.Exec(runID, result.Index, result.Name, result.Tag, int64(result.Date), result.Windows,
			valid, int64(result.Verdict.Counted), int64(result.Verdict.Declared), errorText); err != nil {
			_ = transaction.Rollback()
			return "", fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return runID, nil
}

// RecentRuns lists up to limit runs, newest first.
func (d *Database) RecentRuns(limit int) ([]Run, error) {
	rows, err := d.db.Query(`SELECT id, source, created_at, sessions, invalid, failed FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var run Run
		var createdAt int64
		if err := rows.Scan(&run.ID, &run.Source, &createdAt, &run.Sessions, &run.Invalid, &run.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.UnixMilli(createdAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// RunResults returns the stored results of a run in their original order.
// Decode failures come back with Err set to the stored message.
func (d *Database) RunResults(runID string) ([]validator.Result, error) {
	rows, err := d.db.Query(`SELECT position, name, tag, date, windows, valid, counted, declared, error FROM results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make([]validator.Result, 0)
	for rows.Next() {
		var result validator.Result
		var date, counted, declared int64
		var errorText sql.NullString
		if err := rows.Scan(&result.Index, &result.Name, &result.Tag, &date, &result.Windows,
			&result.Verdict.Valid, &counted, &declared, &errorText); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		result.Date = uint64(date)
		result.Verdict.Counted = uint(counted)
		result.Verdict.Declared = uint(declared)
		if errorText.Valid {
			result.Err = storedError(errorText.String)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return results, nil
}

type storedError string

func (e storedError) Error() string {
	return string(e)
}
