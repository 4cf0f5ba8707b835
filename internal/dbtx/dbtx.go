// Package dbtx carries a *sql.Tx in the context so a service can run
// calls against several repositories on one transaction.
package dbtx

import (
	"context"
	"database/sql"
)

// Querier is the query surface shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type ctxKey struct{}

// With returns a context carrying the transaction.
func With(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, ctxKey{}, tx)
}

// Tx returns the transaction carried by the context, if any.
func Tx(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return tx, ok
}

// From returns the transaction carried by the context, or db when the
// context carries none.
func From(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := Tx(ctx); ok {
		return tx
	}
	return db
}
