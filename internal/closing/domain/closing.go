package closing

import (
	"context"
	"errors"
	"time"

	billing "condoledger/internal/billing/domain"
)

// MonthlyClosing freezes one condominium month: aggregate totals, the
// exchange rate in force at month end and a per-apartment debt
// snapshot. Once a month is closed its financial records are locked.
type MonthlyClosing struct {
	ID               int64
	CondominiumID    int64
	Year             int
	Month            int
	TotalExpensesUSD float64
	TotalPaymentsUSD float64
	ClosingRate      float64
	ClosedAt         time.Time
}

// Period returns the closed period.
func (c MonthlyClosing) Period() billing.Period {
	return billing.Period{Year: c.Year, Month: time.Month(c.Month)}
}

// DebtSnapshot is one apartment's frozen balance at closing time.
// AccruedDebtUSD mirrors ClosingBalanceUSD; downstream consumers read
// either field.
type DebtSnapshot struct {
	ClosingID         int64
	ApartmentID       int64
	AccruedDebtUSD    float64
	PaidThisMonthUSD  float64
	ClosingBalanceUSD float64
}

var (
	// ErrAlreadyClosed is returned when the period has a closing.
	ErrAlreadyClosed = errors.New("closing: period already closed")
	// ErrNoApartments is returned when the condominium has nothing to
	// snapshot.
	ErrNoApartments = errors.New("closing: condominium has no apartments")
)

// Repository persists monthly closings.
type Repository interface {
	// InTx runs fn with every repository call inside one transaction,
	// so the totals a closing freezes come from a single consistent
	// view of the data.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	Exists(ctx context.Context, condominiumID int64, p billing.Period) (bool, error)
	// CreateWithSnapshots inserts the closing and all snapshots in one
	// transaction. ErrAlreadyClosed is returned when a concurrent close
	// won the unique constraint.
	CreateWithSnapshots(ctx context.Context, c *MonthlyClosing, snapshots []DebtSnapshot) error
	FindByPeriod(ctx context.Context, condominiumID int64, p billing.Period) (*MonthlyClosing, error)
	List(ctx context.Context, condominiumID int64) ([]MonthlyClosing, error)
	ListSnapshots(ctx context.Context, closingID int64) ([]DebtSnapshot, error)
	// Closed implements the period lock consulted by billing writes.
	Closed(ctx context.Context, condominiumID int64, p billing.Period) (bool, error)
}
