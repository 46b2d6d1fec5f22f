// ABOUTME: SQLite implementation of the Store interface
// ABOUTME: Pure-Go modernc driver by default, cgo mattn driver selectable by name

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, no cgo
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens the database at path with the pure-Go driver.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return Open(DriverModernc, path)
}

// Open creates a SQLite store at the given path using the named driver.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func Open(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	switch driver {
	case DriverModernc, DriverMattn:
	case "":
		driver = DriverModernc
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	inMemory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if inMemory {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "driver", driver, "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS deployments (
			deployment_id TEXT PRIMARY KEY,
			deployer      TEXT NOT NULL,
			token_name    TEXT NOT NULL,
			token_symbol  TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS access_events (
			deployment_id TEXT NOT NULL,
			seq           INTEGER NOT NULL,
			kind          TEXT NOT NULL,
			caller        TEXT NOT NULL,
			previous      TEXT,
			current       TEXT,
			subject       TEXT,
			status        INTEGER,
			recorded_at   TEXT NOT NULL,

			PRIMARY KEY (deployment_id, seq),
			FOREIGN KEY (deployment_id) REFERENCES deployments(deployment_id),
			CHECK (kind IN ('admin_changed', 'authorization_changed'))
		);

		CREATE TABLE IF NOT EXISTS token_events (
			deployment_id TEXT NOT NULL,
			seq           INTEGER NOT NULL,
			caller        TEXT NOT NULL,
			from_id       TEXT NOT NULL,
			to_id         TEXT NOT NULL,
			amount        TEXT NOT NULL,
			recorded_at   TEXT NOT NULL,

			PRIMARY KEY (deployment_id, seq),
			FOREIGN KEY (deployment_id) REFERENCES deployments(deployment_id)
		);

		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id      TEXT PRIMARY KEY,
			deployment_id TEXT NOT NULL,
			caller        TEXT NOT NULL,
			action        TEXT NOT NULL,
			target        TEXT NOT NULL,
			outcome       TEXT NOT NULL,
			error         TEXT NOT NULL,
			ts            TEXT NOT NULL,

			CHECK (action IN ('deploy', 'set_admin', 'authorize', 'deauthorize', 'mint', 'transfer')),
			CHECK (outcome IN ('accepted', 'rejected'))
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_deployment ON audit_log(deployment_id);
		CREATE INDEX IF NOT EXISTS idx_audit_caller ON audit_log(caller);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing only if fn succeeds.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
