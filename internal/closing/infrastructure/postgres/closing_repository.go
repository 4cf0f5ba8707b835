package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	billing "condoledger/internal/billing/domain"
	closing "condoledger/internal/closing/domain"
	"condoledger/internal/dbtx"
)

// ClosingRepository is a Postgres implementation for monthly closings.
type ClosingRepository struct {
	db *sql.DB
}

// NewClosingRepository constructs a repository.
func NewClosingRepository(db *sql.DB) *ClosingRepository {
	return &ClosingRepository{db: db}
}

// InTx runs fn inside one transaction. The transaction travels in the
// context, so repository calls made by fn share it.
func (r *ClosingRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.db == nil {
		return errors.New("closing repo: nil db")
	}
	if _, ok := dbtx.Tx(ctx); ok {
		return fn(ctx)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(dbtx.With(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Exists reports whether the period has a closing.
func (r *ClosingRepository) Exists(ctx context.Context, condominiumID int64, p billing.Period) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("closing repo: nil db")
	}
	var count int
	err := dbtx.From(ctx, r.db).QueryRowContext(ctx, `
SELECT COUNT(*) FROM monthly_closings
WHERE condominium_id = $1 AND year = $2 AND month = $3`,
		condominiumID, p.Year, int(p.Month)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Closed implements the period lock consulted by billing writes.
func (r *ClosingRepository) Closed(ctx context.Context, condominiumID int64, p billing.Period) (bool, error) {
	return r.Exists(ctx, condominiumID, p)
}

// CreateWithSnapshots inserts the closing and its snapshots. Joins the
// transaction carried by the context when one is present, otherwise it
// opens its own. The unique constraint on (condominium, year, month)
// resolves concurrent closes.
func (r *ClosingRepository) CreateWithSnapshots(ctx context.Context, c *closing.MonthlyClosing, snapshots []closing.DebtSnapshot) error {
	if r == nil || r.db == nil {
		return errors.New("closing repo: nil db")
	}
	if c == nil {
		return errors.New("closing repo: nil closing")
	}
	return r.InTx(ctx, func(ctx context.Context) error {
		return insertClosing(ctx, dbtx.From(ctx, r.db), c, snapshots)
	})
}

func insertClosing(ctx context.Context, q dbtx.Querier, c *closing.MonthlyClosing, snapshots []closing.DebtSnapshot) error {
	err := q.QueryRowContext(ctx, `
INSERT INTO monthly_closings (
	condominium_id, year, month, total_expenses_usd, total_payments_usd, closing_rate
) VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id, closed_at`,
		c.CondominiumID, c.Year, c.Month, c.TotalExpensesUSD, c.TotalPaymentsUSD, c.ClosingRate,
	).Scan(&c.ID, &c.ClosedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return closing.ErrAlreadyClosed
		}
		return err
	}
	for _, s := range snapshots {
		_, err := q.ExecContext(ctx, `
INSERT INTO debt_snapshots (
	closing_id, apartment_id, accrued_debt_usd, paid_this_month_usd, closing_balance_usd
) VALUES ($1,$2,$3,$4,$5)`,
			c.ID, s.ApartmentID, s.AccruedDebtUSD, s.PaidThisMonthUSD, s.ClosingBalanceUSD)
		if err != nil {
			return err
		}
	}
	return nil
}

// FindByPeriod loads the closing for one period.
func (r *ClosingRepository) FindByPeriod(ctx context.Context, condominiumID int64, p billing.Period) (*closing.MonthlyClosing, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("closing repo: nil db")
	}
	row := dbtx.From(ctx, r.db).QueryRowContext(ctx, `
SELECT id, condominium_id, year, month, total_expenses_usd, total_payments_usd, closing_rate, closed_at
FROM monthly_closings
WHERE condominium_id = $1 AND year = $2 AND month = $3
LIMIT 1`, condominiumID, p.Year, int(p.Month))
	return scanClosing(row)
}

// List returns closings ordered most recent first.
func (r *ClosingRepository) List(ctx context.Context, condominiumID int64) ([]closing.MonthlyClosing, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("closing repo: nil db")
	}
	rows, err := dbtx.From(ctx, r.db).QueryContext(ctx, `
SELECT id, condominium_id, year, month, total_expenses_usd, total_payments_usd, closing_rate, closed_at
FROM monthly_closings
WHERE condominium_id = $1
ORDER BY year DESC, month DESC`, condominiumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []closing.MonthlyClosing
	for rows.Next() {
		c, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		if c != nil {
			result = append(result, *c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListSnapshots returns the snapshots of one closing.
func (r *ClosingRepository) ListSnapshots(ctx context.Context, closingID int64) ([]closing.DebtSnapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("closing repo: nil db")
	}
	rows, err := dbtx.From(ctx, r.db).QueryContext(ctx, `
SELECT closing_id, apartment_id, accrued_debt_usd, paid_this_month_usd, closing_balance_usd
FROM debt_snapshots
WHERE closing_id = $1
ORDER BY apartment_id ASC`, closingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []closing.DebtSnapshot
	for rows.Next() {
		var s closing.DebtSnapshot
		if err := rows.Scan(&s.ClosingID, &s.ApartmentID, &s.AccruedDebtUSD, &s.PaidThisMonthUSD, &s.ClosingBalanceUSD); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClosing(row rowScanner) (*closing.MonthlyClosing, error) {
	var c closing.MonthlyClosing
	err := row.Scan(
		&c.ID,
		&c.CondominiumID,
		&c.Year,
		&c.Month,
		&c.TotalExpensesUSD,
		&c.TotalPaymentsUSD,
		&c.ClosingRate,
		&c.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.ClosedAt = c.ClosedAt.UTC()
	return &c, nil
}

// isUniqueViolation detects Postgres error 23505 without binding this
// package to the driver's error type.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
