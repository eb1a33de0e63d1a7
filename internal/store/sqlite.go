// ABOUTME: SQLite implementation of the Store interface using database/sql
// ABOUTME: Opens the database, creates the schema, and runs compound writes in transactions

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

// Driver names registered by the two SQLite drivers linked into the binary.
const (
	DriverModernc = "sqlite"  // pure Go, default
	DriverCgo     = "sqlite3" // mattn/go-sqlite3, requires cgo
)

// timeLayout is fixed width so that lexical order in SQL equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// Option configures NewSQLiteStore
type Option func(*options)

type options struct {
	driver string
	logger *slog.Logger
}

// WithDriver selects the registered database/sql driver (DriverModernc or DriverCgo).
func WithDriver(name string) Option {
	return func(o *options) {
		if name != "" {
			o.driver = name
		}
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	o := options{
		driver: DriverModernc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "store")

	if o.driver != DriverModernc && o.driver != DriverCgo {
		return nil, fmt.Errorf("unsupported sqlite driver %q", o.driver)
	}

	// Ensure parent directory exists
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(o.driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: pragmas stick, and writers are serialized by the pool
	// as well as by SQLite itself.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
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

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", o.driver)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS identities (
			id                TEXT PRIMARY KEY,
			display_name      TEXT NOT NULL,
			role              TEXT NOT NULL,
			credential_digest TEXT NOT NULL,
			created_at        TEXT NOT NULL,

			CHECK (role IN ('borrower', 'staff', 'administrator'))
		);

		CREATE INDEX IF NOT EXISTS idx_identities_role ON identities(role);

		CREATE TABLE IF NOT EXISTS assets (
			tag        TEXT PRIMARY KEY,
			make       TEXT NOT NULL,
			model      TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'available',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			CHECK (status IN ('available', 'on_loan', 'maintenance', 'damaged'))
		);

		CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);

		CREATE TABLE IF NOT EXISTS loans (
			loan_id     INTEGER PRIMARY KEY AUTOINCREMENT,
			asset_tag   TEXT NOT NULL REFERENCES assets(tag),
			borrower_id TEXT NOT NULL REFERENCES identities(id),
			issuer_id   TEXT NOT NULL REFERENCES identities(id),
			issued_at   TEXT NOT NULL,
			due_at      TEXT NOT NULL,
			returned_at TEXT,

			CHECK (due_at > issued_at),
			CHECK (returned_at IS NULL OR returned_at >= issued_at)
		);

		-- At most one open loan per asset, whatever the application does.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_loans_one_open
			ON loans(asset_tag) WHERE returned_at IS NULL;

		CREATE INDEX IF NOT EXISTS idx_loans_asset_issued ON loans(asset_tag, issued_at DESC);
		CREATE INDEX IF NOT EXISTS idx_loans_due ON loans(due_at) WHERE returned_at IS NULL;

		CREATE TABLE IF NOT EXISTS activity_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			actor_id    TEXT NOT NULL,
			description TEXT NOT NULL,
			ts          TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_activity_ts ON activity_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_activity_actor ON activity_log(actor_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "activity_log",
			column: "session_id",
			apply:  `ALTER TABLE activity_log ADD COLUMN session_id TEXT`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(
			`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column,
		).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// withTx runs fn inside a transaction. fn must only use tx; the pool holds a
// single connection, so touching s.db from inside fn would block.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit tx", err)
	}
	return nil
}

// isUniqueViolation checks if the error is a SQLite UNIQUE or PRIMARY KEY
// constraint violation. Both drivers report the same message text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed")
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}
