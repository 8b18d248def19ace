package db

import (
	"context"
	"database/sql"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so table operations can
// run standalone or inside a unit of work.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// WithTx runs fn in a transaction. It commits when fn returns nil and rolls
// back otherwise, so an entity write and its outbox row land together or
// not at all.
func (db *DB) WithTx(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = apperrors.Wrap(apperrors.ErrDatabase, "commit transaction", cerr)
		}
	}()

	return fn(tx)
}
