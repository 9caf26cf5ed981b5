package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// LedgerRepository implements ports.LedgerRepository. The tables are
// append-only; there is no UPDATE or DELETE statement in this file on
// purpose.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Append writes the transaction and its entries.
func (r *LedgerRepository) Append(ctx context.Context, tx ports.DBTX, txn *domain.LedgerTransaction) error {
	q := querier(r.pool, tx)

	_, err := q.Exec(ctx, `
		INSERT INTO ledger_transactions (id, store_id, name, order_source, reference_id, intent_id, currency, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		txn.ID, txn.StoreID, txn.Name, txn.OrderSource, txn.ReferenceID, txn.IntentID, txn.Currency, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger transaction: %w", err)
	}

	for _, e := range txn.Entries {
		_, err := q.Exec(ctx, `
			INSERT INTO ledger_entries (id, transaction_id, account, direction, amount)
			VALUES ($1,$2,$3,$4,$5)`,
			e.ID, txn.ID, e.Account, e.Direction, e.Amount,
		)
		if err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
	}
	return nil
}

// GetByID retrieves one transaction with its entries.
func (r *LedgerRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.LedgerTransaction, error) {
	q := querier(r.pool, tx)

	var txn domain.LedgerTransaction
	err := q.QueryRow(ctx, `
		SELECT id, store_id, name, order_source, reference_id, intent_id, currency, created_at
		FROM ledger_transactions WHERE id = $1`, id).Scan(
		&txn.ID, &txn.StoreID, &txn.Name, &txn.OrderSource, &txn.ReferenceID, &txn.IntentID, &txn.Currency, &txn.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "ledger transaction not found", err)
		}
		return nil, fmt.Errorf("get ledger transaction: %w", err)
	}

	entries, err := r.entriesFor(ctx, q, txn.ID)
	if err != nil {
		return nil, err
	}
	txn.Entries = entries
	return &txn, nil
}

// AccountBalance derives the balance by summation: credits minus debits.
func (r *LedgerRepository) AccountBalance(ctx context.Context, tx ports.DBTX, storeID uuid.UUID, account domain.LedgerAccount) (int64, error) {
	var balance int64
	err := querier(r.pool, tx).QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN e.direction = 'CREDIT' THEN e.amount ELSE -e.amount END), 0)
		FROM ledger_entries e
		JOIN ledger_transactions t ON t.id = e.transaction_id
		WHERE t.store_id = $1 AND e.account = $2`,
		storeID, account).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("sum account balance: %w", err)
	}
	return balance, nil
}

// ListByStorePeriod returns transactions ordered by (created_at, id) for
// deterministic reconciliation checksums.
func (r *LedgerRepository) ListByStorePeriod(ctx context.Context, tx ports.DBTX, storeID uuid.UUID, from, to time.Time) ([]*domain.LedgerTransaction, error) {
	q := querier(r.pool, tx)

	rows, err := q.Query(ctx, `
		SELECT id, store_id, name, order_source, reference_id, intent_id, currency, created_at
		FROM ledger_transactions
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id`,
		storeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list ledger transactions: %w", err)
	}
	defer rows.Close()

	var txns []*domain.LedgerTransaction
	for rows.Next() {
		var txn domain.LedgerTransaction
		if err := rows.Scan(&txn.ID, &txn.StoreID, &txn.Name, &txn.OrderSource,
			&txn.ReferenceID, &txn.IntentID, &txn.Currency, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger transaction: %w", err)
		}
		txns = append(txns, &txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, txn := range txns {
		entries, err := r.entriesFor(ctx, q, txn.ID)
		if err != nil {
			return nil, err
		}
		txn.Entries = entries
	}
	return txns, nil
}

func (r *LedgerRepository) entriesFor(ctx context.Context, q ports.DBTX, txnID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT id, account, direction, amount
		FROM ledger_entries WHERE transaction_id = $1 ORDER BY id`, txnID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Account, &e.Direction, &e.Amount); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
