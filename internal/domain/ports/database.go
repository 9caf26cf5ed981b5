package ports

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx, so
// repositories run the same queries inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBPort wraps the connection pool and transactional execution.
type DBPort interface {
	// WithTx runs fn inside a transaction, rolling back on error or panic.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
	HealthCheck(ctx context.Context) error
}
