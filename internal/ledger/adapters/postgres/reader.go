package postgres

import (
	"context"
	"database/sql"
	"errors"

	billing "condoledger/internal/billing/domain"
)

// ExpenseTotalReader reads the expense total a period's quota is split
// from, straight from the expenses table.
type ExpenseTotalReader struct {
	db *sql.DB
}

// NewExpenseTotalReader constructs a reader.
func NewExpenseTotalReader(db *sql.DB) *ExpenseTotalReader {
	return &ExpenseTotalReader{db: db}
}

// QuotaBaseUSD sums the billed expense amounts dated inside a period.
func (r *ExpenseTotalReader) QuotaBaseUSD(ctx context.Context, condominiumID int64, p billing.Period) (float64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("expense reader: nil db")
	}
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
SELECT SUM(amount_usd)
FROM expenses
WHERE condominium_id = $1 AND expense_date >= $2 AND expense_date < $3`,
		condominiumID, p.Start(), p.End()).Scan(&total)
	if err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Float64, nil
}
