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

// PaymentRepository is a Postgres implementation for payment
// notifications.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
id, condominium_id, apartment_code, paid_date, amount_usd, amount_bs,
exchange_rate, reference, approval_status, reconciliation_status, created_at`

// Create inserts a notification and fills its id.
func (r *PaymentRepository) Create(ctx context.Context, n *billing.PaymentNotification) error {
	if r == nil || r.db == nil {
		return errors.New("payment repo: nil db")
	}
	if n == nil {
		return errors.New("payment repo: nil notification")
	}
	if strings.TrimSpace(n.Reference) == "" {
		return billing.ErrEmptyReference
	}
	if n.ApprovalStatus == "" {
		n.ApprovalStatus = billing.ApprovalPending
	}
	if n.ReconciliationStatus == "" {
		n.ReconciliationStatus = billing.ReconciliationPending
	}
	n.ApartmentCode = billing.NormalizeCode(n.ApartmentCode)
	return dbtx.From(ctx, r.db).QueryRowContext(ctx, `
INSERT INTO payment_notifications (
	condominium_id, apartment_code, paid_date, amount_usd, amount_bs,
	exchange_rate, reference, approval_status, reconciliation_status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id, created_at`,
		n.CondominiumID, n.ApartmentCode, n.Date, n.AmountUSD, n.AmountBs,
		n.ExchangeRate, strings.TrimSpace(n.Reference), n.ApprovalStatus, n.ReconciliationStatus,
	).Scan(&n.ID, &n.CreatedAt)
}

// FindByID loads a notification by id.
func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*billing.PaymentNotification, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	row := dbtx.From(ctx, r.db).QueryRowContext(ctx, fmt.Sprintf(`
SELECT %s
FROM payment_notifications
WHERE id = $1
LIMIT 1`, paymentColumns), id)
	return scanPayment(row)
}

// ListByPeriod returns notifications dated inside a period.
func (r *PaymentRepository) ListByPeriod(ctx context.Context, condominiumID int64, p billing.Period) ([]billing.PaymentNotification, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	rows, err := dbtx.From(ctx, r.db).QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM payment_notifications
WHERE condominium_id = $1 AND paid_date >= $2 AND paid_date < $3
ORDER BY paid_date ASC, id ASC`, paymentColumns), condominiumID, p.Start(), p.End())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ListUnreconciled returns notifications still eligible for matching.
// AMOUNT_MISMATCH rows are revisited because a later statement upload
// may carry the corrected transaction.
func (r *PaymentRepository) ListUnreconciled(ctx context.Context, condominiumID int64) ([]billing.PaymentNotification, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	rows, err := dbtx.From(ctx, r.db).QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM payment_notifications
WHERE condominium_id = $1 AND reconciliation_status IN ($2, $3)
ORDER BY id ASC`, paymentColumns),
		condominiumID, billing.ReconciliationPending, billing.ReconciliationAmountMismatch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// Approve marks a notification administratively approved.
func (r *PaymentRepository) Approve(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("payment repo: nil db")
	}
	res, err := dbtx.From(ctx, r.db).ExecContext(ctx, `
UPDATE payment_notifications
SET approval_status = $1
WHERE id = $2`, billing.ApprovalApproved, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrPaymentNotFound
	}
	return nil
}

// UpdateReconciliationStatus transitions the status when the current
// status is in allowedFrom.
func (r *PaymentRepository) UpdateReconciliationStatus(ctx context.Context, id int64, to billing.ReconciliationStatus, allowedFrom []billing.ReconciliationStatus) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("payment repo: nil db")
	}
	return guardedStatusUpdate(ctx, dbtx.From(ctx, r.db), "payment_notifications", id, to, allowedFrom)
}

// SumVerifiedUSDByPeriod totals bank-verified payments inside a period.
func (r *PaymentRepository) SumVerifiedUSDByPeriod(ctx context.Context, condominiumID int64, p billing.Period) (float64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("payment repo: nil db")
	}
	var total sql.NullFloat64
	err := dbtx.From(ctx, r.db).QueryRowContext(ctx, `
SELECT SUM(amount_usd)
FROM payment_notifications
WHERE condominium_id = $1 AND reconciliation_status = $2
	AND paid_date >= $3 AND paid_date < $4`,
		condominiumID, billing.ReconciliationVerified, p.Start(), p.End()).Scan(&total)
	if err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Float64, nil
}

// SumByApartmentAndPeriod totals bank-verified payments for one
// apartment within a period, in both currencies. Administrative
// approval is deliberately ignored: only the bank statement settles
// what counts as collected.
func (r *PaymentRepository) SumByApartmentAndPeriod(ctx context.Context, condominiumID int64, apartmentCode string, p billing.Period) (float64, float64, error) {
	if r == nil || r.db == nil {
		return 0, 0, errors.New("payment repo: nil db")
	}
	var usd, bs sql.NullFloat64
	err := dbtx.From(ctx, r.db).QueryRowContext(ctx, `
SELECT SUM(amount_usd), SUM(amount_bs)
FROM payment_notifications
WHERE condominium_id = $1 AND apartment_code = $2
	AND reconciliation_status = $3
	AND paid_date >= $4 AND paid_date < $5`,
		condominiumID, billing.NormalizeCode(apartmentCode),
		billing.ReconciliationVerified,
		p.Start(), p.End()).Scan(&usd, &bs)
	if err != nil {
		return 0, 0, err
	}
	return usd.Float64, bs.Float64, nil
}

func collectPayments(rows *sql.Rows) ([]billing.PaymentNotification, error) {
	var result []billing.PaymentNotification
	for rows.Next() {
		n, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		if n != nil {
			result = append(result, *n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanPayment(row rowScanner) (*billing.PaymentNotification, error) {
	var n billing.PaymentNotification
	err := row.Scan(
		&n.ID,
		&n.CondominiumID,
		&n.ApartmentCode,
		&n.Date,
		&n.AmountUSD,
		&n.AmountBs,
		&n.ExchangeRate,
		&n.Reference,
		&n.ApprovalStatus,
		&n.ReconciliationStatus,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	n.Date = n.Date.UTC()
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}
