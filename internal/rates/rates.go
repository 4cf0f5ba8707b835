// Package rates stores the daily Bs/USD exchange rate series.
package rates

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"condoledger/internal/dbtx"
)

// Store is a Postgres-backed exchange rate series.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert records the rate for one date.
func (s *Store) Upsert(ctx context.Context, date time.Time, value float64) error {
	if s == nil || s.db == nil {
		return errors.New("rates: nil db")
	}
	if value <= 0 {
		return errors.New("rates: non-positive rate")
	}
	_, err := dbtx.From(ctx, s.db).ExecContext(ctx, `
INSERT INTO exchange_rates (rate_date, value)
VALUES ($1, $2)
ON CONFLICT (rate_date)
DO UPDATE SET value = EXCLUDED.value`, date, value)
	return err
}

// FindAtOrBefore returns the most recent rate on or before the date.
// Returns 0 when no rate has been stored yet.
func (s *Store) FindAtOrBefore(ctx context.Context, date time.Time) (float64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("rates: nil db")
	}
	var value float64
	err := dbtx.From(ctx, s.db).QueryRowContext(ctx, `
SELECT value
FROM exchange_rates
WHERE rate_date <= $1
ORDER BY rate_date DESC
LIMIT 1`, date).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return value, nil
}

// Fixed is a constant-rate provider used by tests and as a fallback
// when no rate series is loaded.
type Fixed float64

// FindAtOrBefore returns the fixed rate.
func (f Fixed) FindAtOrBefore(ctx context.Context, date time.Time) (float64, error) {
	_ = ctx
	_ = date
	return float64(f), nil
}
