package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isNoRows reports whether err means zero rows.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// querier returns tx when inside a transaction, the pool otherwise.
func querier(pool *pgxpool.Pool, tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return pool
}
