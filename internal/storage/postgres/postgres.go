// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DB wraps the sqlx handle and carries the per-call transaction through the
// context, so every store method automatically joins the transaction opened
// by WithinTx.
type DB struct {
	db *sqlx.DB
}

// New wraps an open sqlx handle.
func New(db *sqlx.DB) *DB {
	return &DB{db: db}
}

type txKey struct{}

// WithinTx runs fn inside a single database transaction. fn returning an
// error rolls the transaction back; otherwise it commits.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		// Already inside a transaction, join it.
		return fn(ctx)
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (d *DB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return d.db
}

func sqlxNamedExec(ctx context.Context, d *DB, query string, arg interface{}) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, d.q(ctx), query, arg)
}
