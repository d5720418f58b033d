package sqlutil

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Query helpers take a DBTX so the same statement can run standalone or
// join a caller's transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
