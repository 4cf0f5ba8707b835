package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	billing "condoledger/internal/billing/domain"
	"condoledger/internal/dbtx"
)

// ExpenseRepository is a Postgres implementation for expenses.
type ExpenseRepository struct {
	db *sql.DB
}

// NewExpenseRepository constructs a repository.
func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

const expenseColumns = `
id, condominium_id, concept, amount_usd, amount_bs, expense_date, exchange_rate,
paid_amount_usd, paid_amount_bs, paid_date, paid_exchange_rate,
reference, reconciliation_status, created_at`

// Create inserts an expense and fills its id.
func (r *ExpenseRepository) Create(ctx context.Context, e *billing.Expense) error {
	if r == nil || r.db == nil {
		return errors.New("expense repo: nil db")
	}
	if e == nil {
		return errors.New("expense repo: nil expense")
	}
	if e.ReconciliationStatus == "" {
		e.ReconciliationStatus = billing.ReconciliationPending
	}
	var paidDate any
	if !e.PaidDate.IsZero() {
		paidDate = e.PaidDate
	}
	return dbtx.From(ctx, r.db).QueryRowContext(ctx, `
INSERT INTO expenses (
	condominium_id, concept, amount_usd, amount_bs, expense_date, exchange_rate,
	paid_amount_usd, paid_amount_bs, paid_date, paid_exchange_rate,
	reference, reconciliation_status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id, created_at`,
		e.CondominiumID, e.Concept, e.AmountUSD, e.AmountBs, e.Date, e.ExchangeRate,
		e.PaidAmountUSD, e.PaidAmountBs, paidDate, e.PaidExchangeRate,
		e.Reference, e.ReconciliationStatus,
	).Scan(&e.ID, &e.CreatedAt)
}

// FindByID loads an expense by id.
func (r *ExpenseRepository) FindByID(ctx context.Context, id int64) (*billing.Expense, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("expense repo: nil db")
	}
	row := dbtx.From(ctx, r.db).QueryRowContext(ctx, fmt.Sprintf(`
SELECT %s
FROM expenses
WHERE id = $1
LIMIT 1`, expenseColumns), id)
	return scanExpense(row)
}

// ListByPeriod returns expenses dated inside a period.
func (r *ExpenseRepository) ListByPeriod(ctx context.Context, condominiumID int64, p billing.Period) ([]billing.Expense, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("expense repo: nil db")
	}
	rows, err := dbtx.From(ctx, r.db).QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM expenses
WHERE condominium_id = $1 AND expense_date >= $2 AND expense_date < $3
ORDER BY expense_date ASC, id ASC`, expenseColumns), condominiumID, p.Start(), p.End())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// ListUnreconciledPaid returns paid expenses with a reference still
// awaiting bank verification.
func (r *ExpenseRepository) ListUnreconciledPaid(ctx context.Context, condominiumID int64) ([]billing.Expense, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("expense repo: nil db")
	}
	rows, err := dbtx.From(ctx, r.db).QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM expenses
WHERE condominium_id = $1
	AND reconciliation_status = $2
	AND reference <> ''
	AND paid_date IS NOT NULL
ORDER BY id ASC`, expenseColumns), condominiumID, billing.ReconciliationPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// MarkPaid records payment details on an expense.
func (r *ExpenseRepository) MarkPaid(ctx context.Context, id int64, payment billing.ExpensePayment) error {
	if r == nil || r.db == nil {
		return errors.New("expense repo: nil db")
	}
	res, err := dbtx.From(ctx, r.db).ExecContext(ctx, `
UPDATE expenses
SET paid_amount_usd = $1,
	paid_amount_bs = $2,
	paid_date = $3,
	paid_exchange_rate = $4,
	reference = $5,
	reconciliation_status = $6
WHERE id = $7`,
		payment.PaidAmountUSD, payment.PaidAmountBs, payment.PaidDate,
		payment.PaidExchangeRate, strings.TrimSpace(payment.Reference),
		billing.ReconciliationPending, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrExpenseNotFound
	}
	return nil
}

// UpdateReconciliationStatus transitions the status when the current
// status is in allowedFrom.
func (r *ExpenseRepository) UpdateReconciliationStatus(ctx context.Context, id int64, to billing.ReconciliationStatus, allowedFrom []billing.ReconciliationStatus) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("expense repo: nil db")
	}
	return guardedStatusUpdate(ctx, dbtx.From(ctx, r.db), "expenses", id, to, allowedFrom)
}

// Delete removes an expense.
func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("expense repo: nil db")
	}
	res, err := dbtx.From(ctx, r.db).ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrExpenseNotFound
	}
	return nil
}

// SumUSDByPeriod totals billed expense amounts dated inside a period,
// paid or not.
func (r *ExpenseRepository) SumUSDByPeriod(ctx context.Context, condominiumID int64, p billing.Period) (float64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("expense repo: nil db")
	}
	var total sql.NullFloat64
	err := dbtx.From(ctx, r.db).QueryRowContext(ctx, `
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

func collectExpenses(rows *sql.Rows) ([]billing.Expense, error) {
	var result []billing.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		if e != nil {
			result = append(result, *e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanExpense(row rowScanner) (*billing.Expense, error) {
	var e billing.Expense
	var expenseDate sql.NullTime
	var paidDate sql.NullTime
	err := row.Scan(
		&e.ID,
		&e.CondominiumID,
		&e.Concept,
		&e.AmountUSD,
		&e.AmountBs,
		&expenseDate,
		&e.ExchangeRate,
		&e.PaidAmountUSD,
		&e.PaidAmountBs,
		&paidDate,
		&e.PaidExchangeRate,
		&e.Reference,
		&e.ReconciliationStatus,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if expenseDate.Valid {
		e.Date = expenseDate.Time.UTC()
	}
	if paidDate.Valid {
		e.PaidDate = paidDate.Time.UTC()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// guardedStatusUpdate performs a compare-and-set on a row's
// reconciliation_status so concurrent runs never overwrite a terminal
// status.
func guardedStatusUpdate(ctx context.Context, q dbtx.Querier, table string, id int64, to billing.ReconciliationStatus, allowedFrom []billing.ReconciliationStatus) (bool, error) {
	if len(allowedFrom) == 0 {
		return false, errors.New("billing repo: empty allowedFrom")
	}
	placeholders := make([]string, 0, len(allowedFrom))
	args := []any{to, id}
	for i, from := range allowedFrom {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+3))
		args = append(args, from)
	}
	query := fmt.Sprintf(`
UPDATE %s
SET reconciliation_status = $1
WHERE id = $2 AND reconciliation_status IN (%s)`, table, strings.Join(placeholders, ","))
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
