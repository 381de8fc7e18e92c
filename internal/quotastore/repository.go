// Package quotastore keeps a local history of CLI quota snapshots so usage
// trends survive the backend's daily reset.
//
// Storage is the shared SQLite database at ~/.config/dialctl/dialctl.db
// (separate table).
package quotastore

import (
	"database/sql"
	"fmt"
	"time"

	"nathanbeddoewebdev/dialctl/internal/database"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository defines the persistence interface for quota snapshots.
type Repository interface {
	// SaveAll inserts a batch of snapshots in one transaction.
	SaveAll(snapshots []Snapshot) error

	// History returns the newest n snapshots for a country, newest first.
	History(country string, limit int) ([]Snapshot, error)

	// Prune deletes snapshots older than the given duration.
	Prune(olderThan time.Duration) (int64, error)

	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// Open creates or opens the repository at the default path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("quotastore: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("quotastore: %w", err)
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
		CREATE TABLE IF NOT EXISTS quota_snapshots (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			source      TEXT    NOT NULL DEFAULT '',
			country     TEXT    NOT NULL,
			daily_limit INTEGER NOT NULL DEFAULT 0,
			used        INTEGER NOT NULL DEFAULT 0,
			recorded_at TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_quota_snapshots_country ON quota_snapshots(country, recorded_at);
	`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("quotastore: migration failed: %w", err)
	}
	return nil
}

// SaveAll inserts snapshots atomically and assigns their IDs. A zero
// RecordedAt is set to now.
func (r *SQLiteRepository) SaveAll(snapshots []Snapshot) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("quotastore: begin failed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO quota_snapshots (source, country, daily_limit, used, recorded_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("quotastore: prepare failed: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range snapshots {
		s := &snapshots[i]
		if s.RecordedAt.IsZero() {
			s.RecordedAt = now
		}
		result, err := stmt.Exec(s.Source, s.Country, s.DailyLimit, s.Used, s.RecordedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("quotastore: insert failed: %w", err)
		}
		if s.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("quotastore: failed to get last insert ID: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("quotastore: commit failed: %w", err)
	}
	return nil
}

// History returns the newest n snapshots for country, newest first.
func (r *SQLiteRepository) History(country string, limit int) ([]Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT id, source, country, daily_limit, used, recorded_at
		FROM quota_snapshots WHERE country = ?
		ORDER BY recorded_at DESC, id DESC LIMIT ?`, country, limit)
	if err != nil {
		return nil, fmt.Errorf("quotastore: query failed: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var recorded string
		if err := rows.Scan(&s.ID, &s.Source, &s.Country, &s.DailyLimit, &s.Used, &recorded); err != nil {
			return nil, fmt.Errorf("quotastore: scan failed: %w", err)
		}
		s.RecordedAt, _ = time.Parse(timeLayout, recorded)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Prune deletes snapshots older than the given duration.
func (r *SQLiteRepository) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.Exec(`DELETE FROM quota_snapshots WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("quotastore: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
