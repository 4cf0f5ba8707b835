package billing

import "time"

// BillingRecord is the live per-apartment ledger line for one period:
// the quota charged and the payments credited against it. Monthly
// closing freezes these into immutable snapshots.
type BillingRecord struct {
	ID            int64
	CondominiumID int64
	ApartmentID   int64
	Year          int
	Month         int
	QuotaUSD      float64
	PaidUSD       float64
	CreatedAt     time.Time
}

// Balance returns the outstanding amount for the record.
func (r BillingRecord) Balance() float64 {
	return r.QuotaUSD - r.PaidUSD
}
