// Package runstore provides persistent storage for load-test runs.
//
// Every Start issued through the load-test controller is recorded along
// with its configuration, each state transition, and the final result.
//
// Storage is backed by the shared SQLite database at
// ~/.config/dialctl/dialctl.db (table load_test_runs).
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"nathanbeddoewebdev/dialctl/internal/database"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"

	"github.com/google/uuid"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository defines the persistence interface for load-test runs.
type Repository interface {
	// Save inserts or updates a run. On insert (ID == ""), a UUID is
	// assigned to the run.
	Save(run *Run) error

	// Get retrieves a single run by ID, or nil if it does not exist.
	Get(id string) (*Run, error)

	// ListRecent returns the most recent n runs, newest first.
	ListRecent(n int) ([]Run, error)

	// ListActive returns runs still in "starting" or "running", newest
	// first.
	ListActive() ([]Run, error)

	// DeleteOlderThan removes finished runs last updated more than d ago.
	DeleteOlderThan(d time.Duration) (int64, error)

	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// Open creates or opens the run repository at the default path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("runstore: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("runstore: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS load_test_runs (
			id            TEXT PRIMARY KEY,
			source        TEXT NOT NULL DEFAULT '',
			config        TEXT NOT NULL DEFAULT '{}',
			state         TEXT NOT NULL DEFAULT 'starting',
			result        TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			started_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_load_test_runs_state ON load_test_runs(state);
		CREATE INDEX IF NOT EXISTS idx_load_test_runs_started ON load_test_runs(started_at);
	`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("runstore: migration failed: %w", err)
	}
	return nil
}

// Save inserts a new run (ID == "") or updates an existing one.
func (r *SQLiteRepository) Save(run *Run) error {
	run.UpdatedAt = time.Now().UTC()

	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("runstore: encode config: %w", err)
	}
	var result string
	if run.Result != nil {
		b, err := json.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("runstore: encode result: %w", err)
		}
		result = string(b)
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
		if run.StartedAt.IsZero() {
			run.StartedAt = run.UpdatedAt
		}
		_, err := r.db.Exec(`
			INSERT INTO load_test_runs (id, source, config, state, result, error_message, started_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Source, string(cfg), run.State, result, run.ErrorMessage,
			run.StartedAt.UTC().Format(timeLayout), run.UpdatedAt.Format(timeLayout),
		)
		if err != nil {
			run.ID = ""
			return fmt.Errorf("runstore: insert failed: %w", err)
		}
		return nil
	}

	res, err := r.db.Exec(`
		UPDATE load_test_runs SET source=?, config=?, state=?, result=?, error_message=?, updated_at=?
		WHERE id=?`,
		run.Source, string(cfg), run.State, result, run.ErrorMessage,
		run.UpdatedAt.Format(timeLayout), run.ID,
	)
	if err != nil {
		return fmt.Errorf("runstore: update failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("runstore: run %s not found", run.ID)
	}
	return nil
}

const selectColumns = `SELECT id, source, config, state, result, error_message, started_at, updated_at FROM load_test_runs`

// Get retrieves a single run by ID.
func (r *SQLiteRepository) Get(id string) (*Run, error) {
	rows, err := r.db.Query(selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("runstore: query failed: %w", err)
	}
	defer rows.Close()

	runs, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ListRecent returns the most recent n runs regardless of state.
func (r *SQLiteRepository) ListRecent(n int) ([]Run, error) {
	rows, err := r.db.Query(selectColumns+` ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("runstore: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ListActive returns runs that have not reached a terminal state.
func (r *SQLiteRepository) ListActive() ([]Run, error) {
	rows, err := r.db.Query(selectColumns + ` WHERE state IN ('starting', 'running') ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("runstore: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// DeleteOlderThan removes finished runs older than d.
func (r *SQLiteRepository) DeleteOlderThan(d time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-d).Format(timeLayout)
	res, err := r.db.Exec(`
		DELETE FROM load_test_runs WHERE state NOT IN ('starting', 'running') AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("runstore: delete failed: %w", err)
	}
	return res.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanRows(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			run                    Run
			cfg, result            string
			startedStr, updatedStr string
		)
		err := rows.Scan(&run.ID, &run.Source, &cfg, &run.State, &result, &run.ErrorMessage, &startedStr, &updatedStr)
		if err != nil {
			return nil, fmt.Errorf("runstore: scan failed: %w", err)
		}
		if err := json.Unmarshal([]byte(cfg), &run.Config); err != nil {
			return nil, fmt.Errorf("runstore: decode config for run %s: %w", run.ID, err)
		}
		if result != "" {
			var res domain.LoadTestResult
			if err := json.Unmarshal([]byte(result), &res); err != nil {
				return nil, fmt.Errorf("runstore: decode result for run %s: %w", run.ID, err)
			}
			run.Result = &res
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		run.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
