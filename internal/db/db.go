// Package db provides the durable local store: connection management,
// schema migrations, seeding, transactions and table-level operations for
// every entity kept on the device.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps the sql.DB with the store clock and logger.
type DB struct {
	*sql.DB
	clock Clock
	log   *logging.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithClock sets the clock used to stamp every write.
func WithClock(c Clock) Option {
	return func(db *DB) {
		if c != nil {
			db.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(db *DB) {
		db.log = logging.OrNop(l)
	}
}

// New wraps an already opened *sql.DB. It does not apply pragmas or migrations.
func New(sqlDB *sql.DB, opts ...Option) *DB {
	db := &DB{DB: sqlDB, clock: SystemClock{}, log: logging.NewNop()}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Open opens the SQLite database at path, creating its directory if needed.
// The database is opened with:
// - a single connection, since SQLite serialises writers anyway
// - WAL journal mode
// - foreign key constraints enabled
// - a busy timeout so a locked file waits instead of failing
func Open(path string, opts ...Option) (*DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "create data directory", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "open database", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			_ = sqlDB.Close()
			return nil, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("apply %q", p), err)
		}
	}

	return New(sqlDB, opts...), nil
}

// Init brings the schema up to date and seeds a fresh database.
// Any error here must stop the application from starting.
func (db *DB) Init(ctx context.Context) error {
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	if err := db.Seed(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "seed store", err)
	}
	return nil
}

// Now returns the store clock's current time in UTC.
func (db *DB) Now() time.Time {
	return db.clock.Now().UTC()
}

// Clock returns the store clock.
func (db *DB) Clock() Clock {
	return db.clock
}

// Logger returns the store logger.
func (db *DB) Logger() *logging.Logger {
	return db.log
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
