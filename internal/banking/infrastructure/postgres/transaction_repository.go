package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	banking "condoledger/internal/banking/domain"
)

// TransactionRepository is a Postgres implementation for bank
// transactions.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository constructs a repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// InsertIfAbsent stores the transaction unless its reference exists.
func (r *TransactionRepository) InsertIfAbsent(ctx context.Context, t *banking.BankTransaction) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("transaction repo: nil db")
	}
	if t == nil {
		return false, errors.New("transaction repo: nil transaction")
	}
	if strings.TrimSpace(t.Reference) == "" {
		return false, banking.ErrEmptyReference
	}
	err := r.db.QueryRowContext(ctx, `
INSERT INTO bank_transactions (tx_date, reference, amount, batch_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (reference) DO NOTHING
RETURNING id, created_at`,
		t.Date, t.Reference, t.Amount, t.BatchID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindByReferenceSuffix returns transactions whose reference ends with
// the suffix.
func (r *TransactionRepository) FindByReferenceSuffix(ctx context.Context, suffix string) ([]banking.BankTransaction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transaction repo: nil db")
	}
	if suffix == "" {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tx_date, reference, amount, batch_id, created_at
FROM bank_transactions
WHERE right(reference, $1) = $2
ORDER BY tx_date ASC, id ASC`, banking.SuffixLen, suffix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// Count returns the number of stored transactions.
func (r *TransactionRepository) Count(ctx context.Context) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("transaction repo: nil db")
	}
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bank_transactions`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListByBatch returns transactions inserted by one upload.
func (r *TransactionRepository) ListByBatch(ctx context.Context, batchID string) ([]banking.BankTransaction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transaction repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tx_date, reference, amount, batch_id, created_at
FROM bank_transactions
WHERE batch_id = $1
ORDER BY id ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]banking.BankTransaction, error) {
	var result []banking.BankTransaction
	for rows.Next() {
		var t banking.BankTransaction
		if err := rows.Scan(&t.ID, &t.Date, &t.Reference, &t.Amount, &t.BatchID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Date = t.Date.UTC()
		t.CreatedAt = t.CreatedAt.UTC()
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
