package billing

import (
	"context"
	"time"
)

// PeriodGuard reports whether a period is frozen by a monthly closing.
// Implemented by the closing store.
type PeriodGuard interface {
	Closed(ctx context.Context, condominiumID int64, p Period) (bool, error)
}

// ApartmentRepository persists apartments.
type ApartmentRepository interface {
	Create(ctx context.Context, a *Apartment) error
	// UpdateOwner renames an apartment's owner.
	UpdateOwner(ctx context.Context, id int64, owner string) error
	FindByID(ctx context.Context, id int64) (*Apartment, error)
	FindByCode(ctx context.Context, condominiumID int64, code string) (*Apartment, error)
	ListByCondominium(ctx context.Context, condominiumID int64) ([]Apartment, error)
	CountByCondominium(ctx context.Context, condominiumID int64) (int, error)
}

// ExpenseRepository persists condominium expenses.
type ExpenseRepository interface {
	Create(ctx context.Context, e *Expense) error
	FindByID(ctx context.Context, id int64) (*Expense, error)
	ListByPeriod(ctx context.Context, condominiumID int64, p Period) ([]Expense, error)
	// ListUnreconciledPaid returns paid expenses with a non-empty
	// reference still pending bank verification.
	ListUnreconciledPaid(ctx context.Context, condominiumID int64) ([]Expense, error)
	MarkPaid(ctx context.Context, id int64, payment ExpensePayment) error
	// UpdateReconciliationStatus transitions the status only when the
	// current status is one of allowedFrom, and reports whether the row
	// was updated.
	UpdateReconciliationStatus(ctx context.Context, id int64, to ReconciliationStatus, allowedFrom []ReconciliationStatus) (bool, error)
	Delete(ctx context.Context, id int64) error
	// SumUSDByPeriod totals billed expense amounts dated inside the
	// period, paid or not.
	SumUSDByPeriod(ctx context.Context, condominiumID int64, p Period) (float64, error)
}

// PaymentRepository persists payment notifications.
type PaymentRepository interface {
	Create(ctx context.Context, n *PaymentNotification) error
	FindByID(ctx context.Context, id int64) (*PaymentNotification, error)
	ListByPeriod(ctx context.Context, condominiumID int64, p Period) ([]PaymentNotification, error)
	// ListUnreconciled returns notifications whose reconciliation status
	// is PENDING or AMOUNT_MISMATCH.
	ListUnreconciled(ctx context.Context, condominiumID int64) ([]PaymentNotification, error)
	Approve(ctx context.Context, id int64) error
	UpdateReconciliationStatus(ctx context.Context, id int64, to ReconciliationStatus, allowedFrom []ReconciliationStatus) (bool, error)
	SumVerifiedUSDByPeriod(ctx context.Context, condominiumID int64, p Period) (float64, error)
	// SumByApartmentAndPeriod totals bank-verified payments for one
	// apartment code within a period, in both currencies.
	SumByApartmentAndPeriod(ctx context.Context, condominiumID int64, apartmentCode string, p Period) (usd, bs float64, err error)
}

// BillingRecordRepository persists per-apartment period charges.
type BillingRecordRepository interface {
	Upsert(ctx context.Context, r *BillingRecord) error
	ListByPeriod(ctx context.Context, condominiumID int64, p Period) ([]BillingRecord, error)
	// OutstandingByApartment sums unpaid balances per apartment across
	// all periods up to and including p.
	OutstandingByApartment(ctx context.Context, condominiumID int64, p Period) (map[int64]float64, error)
}

// RateProvider resolves the exchange rate effective on a date.
type RateProvider interface {
	FindAtOrBefore(ctx context.Context, date time.Time) (float64, error)
}
