package postgres

import (
	"context"
	"database/sql"
	"errors"

	billing "condoledger/internal/billing/domain"
	"condoledger/internal/dbtx"
)

// BillingRecordRepository is a Postgres implementation for per-apartment
// period charges.
type BillingRecordRepository struct {
	db *sql.DB
}

// NewBillingRecordRepository constructs a repository.
func NewBillingRecordRepository(db *sql.DB) *BillingRecordRepository {
	return &BillingRecordRepository{db: db}
}

// Upsert inserts or replaces the record for (apartment, year, month).
func (r *BillingRecordRepository) Upsert(ctx context.Context, rec *billing.BillingRecord) error {
	if r == nil || r.db == nil {
		return errors.New("billing record repo: nil db")
	}
	if rec == nil {
		return errors.New("billing record repo: nil record")
	}
	return dbtx.From(ctx, r.db).QueryRowContext(ctx, `
INSERT INTO billing_records (condominium_id, apartment_id, year, month, quota_usd, paid_usd)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (apartment_id, year, month)
DO UPDATE SET quota_usd = EXCLUDED.quota_usd, paid_usd = EXCLUDED.paid_usd
RETURNING id, created_at`,
		rec.CondominiumID, rec.ApartmentID, rec.Year, rec.Month, rec.QuotaUSD, rec.PaidUSD,
	).Scan(&rec.ID, &rec.CreatedAt)
}

// ListByPeriod returns records for one period ordered by apartment.
func (r *BillingRecordRepository) ListByPeriod(ctx context.Context, condominiumID int64, p billing.Period) ([]billing.BillingRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("billing record repo: nil db")
	}
	rows, err := dbtx.From(ctx, r.db).QueryContext(ctx, `
SELECT id, condominium_id, apartment_id, year, month, quota_usd, paid_usd, created_at
FROM billing_records
WHERE condominium_id = $1 AND year = $2 AND month = $3
ORDER BY apartment_id ASC`, condominiumID, p.Year, int(p.Month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.BillingRecord
	for rows.Next() {
		var rec billing.BillingRecord
		if err := rows.Scan(&rec.ID, &rec.CondominiumID, &rec.ApartmentID, &rec.Year, &rec.Month, &rec.QuotaUSD, &rec.PaidUSD, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// OutstandingByApartment sums unpaid balances per apartment across all
// periods up to and including p.
func (r *BillingRecordRepository) OutstandingByApartment(ctx context.Context, condominiumID int64, p billing.Period) (map[int64]float64, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("billing record repo: nil db")
	}
	rows, err := dbtx.From(ctx, r.db).QueryContext(ctx, `
SELECT apartment_id, SUM(quota_usd - paid_usd)
FROM billing_records
WHERE condominium_id = $1 AND (year < $2 OR (year = $2 AND month <= $3))
GROUP BY apartment_id`, condominiumID, p.Year, int(p.Month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]float64)
	for rows.Next() {
		var apartmentID int64
		var balance float64
		if err := rows.Scan(&apartmentID, &balance); err != nil {
			return nil, err
		}
		result[apartmentID] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
