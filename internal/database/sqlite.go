package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/igoyetche/plex-update-script/internal/database/migrations"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a run journal at path and migrates
// it to the latest schema. path can be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating run journal: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the
// appropriate PRAGMAs. Exported for tools and tests that need a
// properly configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, operation, status, installed_version, target_version, backup_path, detail, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Operation, StatusRunning, run.InstalledVersion,
		run.TargetVersion, run.BackupPath, run.Detail, run.StartedAt)
	if err != nil {
		return fmt.Errorf("creating run record: %w", err)
	}
	return nil
}

// FinishRun marks a run as finished with the given terminal status,
// updating the fields that may have been discovered during the run.
func (s *SQLiteStore) FinishRun(ctx context.Context, id, status string, run *Run) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, installed_version = ?, target_version = ?, backup_path = ?, detail = ?, finished_at = ?
		WHERE id = ?`,
		status, run.InstalledVersion, run.TargetVersion, run.BackupPath, run.Detail, now, id)
	if err != nil {
		return fmt.Errorf("finishing run record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run record: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no run with id %s", id)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means
// no limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `
		SELECT id, operation, status, installed_version, target_version, backup_path, detail, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.Operation, &run.Status,
			&run.InstalledVersion, &run.TargetVersion, &run.BackupPath,
			&run.Detail, &run.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
