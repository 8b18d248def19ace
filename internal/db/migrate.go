package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its base FS, dialect and logger in package globals.
var gooseMu sync.Mutex

func init() {
	goose.AddNamedMigrationContext("00002_alerts_tenant_id.go", upAlertsTenantID, downNoop)
}

// Migrate applies every pending migration. A failure leaves the store
// unusable and is reported as MIGRATION_FAILED.
func (db *DB) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{log: db.log})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "set migration dialect", err)
	}

	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "apply migrations", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "read schema version", err)
	}
	db.log.Info("schema up to date", map[string]interface{}{"version": version})
	return nil
}

// HasColumn reports whether table has a column called column.
func HasColumn(ctx context.Context, q Querier, table, column string) (bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// upAlertsTenantID adds alerts.tenant_id unless the column is already there,
// which keeps installs that gained it outside versioned migrations working.
func upAlertsTenantID(ctx context.Context, tx *sql.Tx) error {
	ok, err := HasColumn(ctx, tx, "alerts", "tenant_id")
	if err != nil {
		return fmt.Errorf("probe alerts.tenant_id: %w", err)
	}
	if ok {
		return nil
	}
	_, err = tx.ExecContext(ctx, `ALTER TABLE alerts ADD COLUMN tenant_id TEXT DEFAULT 'tenant_demo'`)
	return err
}

// SQLite cannot drop columns on older builds, so additive migrations do not
// reverse.
func downNoop(context.Context, *sql.Tx) error { return nil }

// gooseLogger routes goose output through the store logger.
type gooseLogger struct {
	log *logging.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), map[string]interface{}{"component": "goose"})
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.ErrorWithCode(fmt.Sprintf(format, v...), string(apperrors.ErrMigration), nil,
		map[string]interface{}{"component": "goose"})
}
