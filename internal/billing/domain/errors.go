package billing

import "errors"

var (
	// ErrInvalidPeriod is returned for malformed year/month values.
	ErrInvalidPeriod = errors.New("billing: invalid period")
	// ErrPeriodLocked is returned when a write targets a closed period.
	ErrPeriodLocked = errors.New("billing: period locked by monthly closing")
	// ErrApartmentNotFound is returned when an apartment does not exist.
	ErrApartmentNotFound = errors.New("billing: apartment not found")
	// ErrExpenseNotFound is returned when an expense does not exist.
	ErrExpenseNotFound = errors.New("billing: expense not found")
	// ErrPaymentNotFound is returned when a payment notification does not exist.
	ErrPaymentNotFound = errors.New("billing: payment notification not found")
	// ErrEmptyReference is returned when a record requires a bank reference.
	ErrEmptyReference = errors.New("billing: empty reference")
)
