package billing

import "time"

// PaymentNotification is an owner-reported payment awaiting bank
// verification. Notifications are never deleted; the approval status
// transitions once, while the reconciliation status may transition
// repeatedly as new bank data arrives, until the period is closed.
type PaymentNotification struct {
	ID                   int64
	CondominiumID        int64
	ApartmentCode        string
	Date                 time.Time
	AmountUSD            float64
	AmountBs             float64
	ExchangeRate         float64
	Reference            string
	ApprovalStatus       ApprovalStatus
	ReconciliationStatus ReconciliationStatus
	CreatedAt            time.Time
}

// Period returns the billing period the payment is dated in.
func (n PaymentNotification) Period() Period {
	return PeriodOf(n.Date)
}
