package billing

import "time"

// Expense is a condominium expense, optionally marked paid with a bank
// reference so it can be reconciled against the transaction store.
type Expense struct {
	ID                   int64
	CondominiumID        int64
	Concept              string
	AmountUSD            float64
	AmountBs             float64
	Date                 time.Time
	ExchangeRate         float64
	PaidAmountUSD        float64
	PaidAmountBs         float64
	PaidDate             time.Time
	PaidExchangeRate     float64
	Reference            string
	ReconciliationStatus ReconciliationStatus
	CreatedAt            time.Time
}

// Period returns the billing period the expense is dated in.
func (e Expense) Period() Period {
	return PeriodOf(e.Date)
}

// ExpensePayment carries the fields set when an expense is marked paid.
type ExpensePayment struct {
	PaidAmountUSD    float64
	PaidAmountBs     float64
	PaidDate         time.Time
	PaidExchangeRate float64
	Reference        string
}
