// Package history keeps the append-only record of backup runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bamsammich/banana/internal/engine"
	"github.com/bamsammich/banana/internal/event"
)

var (
	// ErrNotFound is returned by Get for an unknown run ID.
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguous is returned by Get for an ID prefix shared by several runs.
	ErrAmbiguous = errors.New("run id prefix matches more than one run")
)

// Store is a SQLite-backed run history. It is safe for concurrent use,
// including from several processes: the database runs in WAL mode with a
// busy timeout.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// Pragmas below are per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
		PRAGMA foreign_keys = ON;

		CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			task           TEXT NOT NULL,
			source         TEXT NOT NULL,
			destination    TEXT NOT NULL,
			started_at     INTEGER NOT NULL,
			duration_ns    INTEGER NOT NULL,
			status         TEXT NOT NULL,
			files_added    INTEGER NOT NULL,
			files_modified INTEGER NOT NULL,
			files_copied   INTEGER NOT NULL,
			files_deleted  INTEGER NOT NULL,
			bytes_copied   INTEGER NOT NULL,
			dirs_created   INTEGER NOT NULL,
			error          TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS runs_task_started ON runs (task, started_at);

		CREATE TABLE IF NOT EXISTS failures (
			run_id  TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
			seq     INTEGER NOT NULL,
			path    TEXT NOT NULL,
			kind    TEXT NOT NULL,
			message TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records a finished run and its failures in one transaction.
func (s *Store) Append(ctx context.Context, r engine.BackupResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, task, source, destination, started_at, duration_ns, status,
			files_added, files_modified, files_copied, files_deleted, bytes_copied, dirs_created, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Task, r.Source, r.Destination, r.StartedAt.UnixNano(), int64(r.Duration), string(r.Status),
		r.FilesAdded, r.FilesModified, r.FilesCopied, r.FilesDeleted, r.BytesCopied, r.DirsCreated, r.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	if len(r.Failures) > 0 {
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO failures (run_id, seq, path, kind, message) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for i, f := range r.Failures {
			if _, err := stmt.ExecContext(ctx, r.ID, i, f.Path, string(f.Kind), f.Message); err != nil {
				return fmt.Errorf("insert failure %s: %w", f.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const runColumns = `id, task, source, destination, started_at, duration_ns, status,
	files_added, files_modified, files_copied, files_deleted, bytes_copied, dirs_created, error`

// List returns the most recent runs with their failures, newest first. An
// empty task lists all tasks; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, task string, limit int) ([]engine.BackupResult, error) {
	query := "SELECT " + runColumns + " FROM runs"
	var args []any
	if task != "" {
		query += " WHERE task = ?"
		args = append(args, task)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.withFailures(ctx, query, args...)
}

// Get returns one run with its failures. id may be a unique prefix of a
// run ID, as printed by the history listing.
func (s *Store) Get(ctx context.Context, id string) (engine.BackupResult, error) {
	if id == "" {
		return engine.BackupResult{}, fmt.Errorf("empty run id: %w", ErrNotFound)
	}
	runs, err := s.withFailures(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	if err != nil {
		return engine.BackupResult{}, err
	}
	if len(runs) == 0 {
		runs, err = s.withFailures(ctx,
			"SELECT "+runColumns+" FROM runs WHERE substr(id, 1, length(?)) = ? ORDER BY started_at DESC LIMIT 2", id, id)
		if err != nil {
			return engine.BackupResult{}, err
		}
	}
	switch len(runs) {
	case 0:
		return engine.BackupResult{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	case 1:
		return runs[0], nil
	default:
		return engine.BackupResult{}, fmt.Errorf("%s: %w", id, ErrAmbiguous)
	}
}

// Failures returns the most recent runs that ended with errors, with their
// failures loaded, newest first. This is the error log.
func (s *Store) Failures(ctx context.Context, limit int) ([]engine.BackupResult, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE status IN (?, ?) ORDER BY started_at DESC"
	args := []any{string(event.StatusPartial), string(event.StatusFailure)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.withFailures(ctx, query, args...)
}

func (s *Store) withFailures(ctx context.Context, query string, args ...any) ([]engine.BackupResult, error) {
	runs, err := s.queryRuns(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].Failures, err = s.failures(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]engine.BackupResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []engine.BackupResult
	for rows.Next() {
		var (
			r        engine.BackupResult
			started  int64
			duration int64
			status   string
		)
		err := rows.Scan(&r.ID, &r.Task, &r.Source, &r.Destination, &started, &duration, &status,
			&r.FilesAdded, &r.FilesModified, &r.FilesCopied, &r.FilesDeleted, &r.BytesCopied, &r.DirsCreated, &r.Error)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.Duration = time.Duration(duration)
		r.Status = event.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) failures(ctx context.Context, runID string) ([]engine.FileFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, kind, message FROM failures WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []engine.FileFailure
	for rows.Next() {
		var f engine.FileFailure
		var kind string
		if err := rows.Scan(&f.Path, &kind, &f.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.Kind = engine.ErrorKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}
