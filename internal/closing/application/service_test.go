package application

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	billing "condoledger/internal/billing/domain"
	billmem "condoledger/internal/billing/infrastructure/memory"
	closing "condoledger/internal/closing/domain"
	closingmem "condoledger/internal/closing/infrastructure/memory"
	"condoledger/internal/rates"
)

type fixture struct {
	service    *Service
	closings   *closingmem.ClosingRepository
	apartments *billmem.ApartmentRepository
	expenses   *billmem.ExpenseRepository
	payments   *billmem.PaymentRepository
	records    *billmem.BillingRecordRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		closings:   closingmem.NewClosingRepository(),
		apartments: billmem.NewApartmentRepository(),
		expenses:   billmem.NewExpenseRepository(),
		payments:   billmem.NewPaymentRepository(),
		records:    billmem.NewBillingRecordRepository(),
	}
	service, err := NewService(f.closings, f.apartments, f.expenses, f.payments, f.records, rates.Fixed(36.5), log.Default())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.service = service
	return f
}

func (f *fixture) addApartment(t *testing.T, code string) *billing.Apartment {
	t.Helper()
	a := &billing.Apartment{CondominiumID: 1, Code: code}
	if err := f.apartments.Create(context.Background(), a); err != nil {
		t.Fatalf("add apartment: %v", err)
	}
	return a
}

func TestCloseFreezesMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := billing.Period{Year: 2025, Month: time.March}

	a1 := f.addApartment(t, "1-A")
	a2 := f.addApartment(t, "1-B")

	// Quota 100 each; 1-A pays in full, 1-B pays nothing.
	for _, rec := range []*billing.BillingRecord{
		{CondominiumID: 1, ApartmentID: a1.ID, Year: 2025, Month: 3, QuotaUSD: 100, PaidUSD: 100},
		{CondominiumID: 1, ApartmentID: a2.ID, Year: 2025, Month: 3, QuotaUSD: 100, PaidUSD: 0},
	} {
		if err := f.records.Upsert(ctx, rec); err != nil {
			t.Fatalf("upsert record: %v", err)
		}
	}

	n := &billing.PaymentNotification{
		CondominiumID: 1,
		ApartmentCode: "1-A",
		Date:          time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		AmountUSD:     100,
		AmountBs:      3650,
		Reference:     "001234567890",
	}
	if err := f.payments.Create(ctx, n); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if _, err := f.payments.UpdateReconciliationStatus(ctx, n.ID, billing.ReconciliationVerified, []billing.ReconciliationStatus{billing.ReconciliationPending}); err != nil {
		t.Fatalf("verify payment: %v", err)
	}

	e := &billing.Expense{
		CondominiumID: 1,
		Concept:       "LIMPIEZA",
		AmountUSD:     60,
		Date:          time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		PaidAmountUSD: 60,
		PaidDate:      time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		Reference:     "004455667788",
	}
	if err := f.expenses.Create(ctx, e); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	c, err := f.service.Close(ctx, 1, p)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.TotalExpensesUSD != 60 {
		t.Fatalf("total expenses = %v", c.TotalExpensesUSD)
	}
	if c.TotalPaymentsUSD != 100 {
		t.Fatalf("total payments = %v", c.TotalPaymentsUSD)
	}
	if c.ClosingRate != 36.5 {
		t.Fatalf("closing rate = %v", c.ClosingRate)
	}

	snapshots, err := f.closings.ListSnapshots(ctx, c.ID)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snapshots))
	}
	if snapshots[0].ApartmentID != a1.ID || snapshots[0].ClosingBalanceUSD != 0 {
		t.Fatalf("snapshot 1-A = %+v", snapshots[0])
	}
	if snapshots[0].PaidThisMonthUSD != 100 {
		t.Fatalf("snapshot 1-A paid = %v", snapshots[0].PaidThisMonthUSD)
	}
	if snapshots[1].ApartmentID != a2.ID || snapshots[1].ClosingBalanceUSD != 100 {
		t.Fatalf("snapshot 1-B = %+v", snapshots[1])
	}
	if snapshots[1].AccruedDebtUSD != snapshots[1].ClosingBalanceUSD {
		t.Fatal("accrued must mirror closing balance")
	}
}

func TestCloseCountsUnpaidExpenses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := billing.Period{Year: 2025, Month: time.March}
	f.addApartment(t, "1-A")

	// Billed in March but not yet paid: the month's total still
	// carries it.
	e := &billing.Expense{
		CondominiumID: 1,
		Concept:       "MANTENIMIENTO ASCENSOR",
		AmountUSD:     100,
		Date:          time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
	}
	if err := f.expenses.Create(ctx, e); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	c, err := f.service.Close(ctx, 1, p)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.TotalExpensesUSD != 100 {
		t.Fatalf("total expenses = %v, want 100", c.TotalExpensesUSD)
	}
}

func TestCloseTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := billing.Period{Year: 2025, Month: time.March}
	f.addApartment(t, "1-A")

	if _, err := f.service.Close(ctx, 1, p); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if _, err := f.service.Close(ctx, 1, p); !errors.Is(err, closing.ErrAlreadyClosed) {
		t.Fatalf("second close err = %v, want ErrAlreadyClosed", err)
	}
}

func TestCloseWithoutApartmentsFails(t *testing.T) {
	f := newFixture(t)
	p := billing.Period{Year: 2025, Month: time.March}
	if _, err := f.service.Close(context.Background(), 1, p); !errors.Is(err, closing.ErrNoApartments) {
		t.Fatalf("err = %v, want ErrNoApartments", err)
	}
}

func TestClosedPeriodLocksWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := billing.Period{Year: 2025, Month: time.March}
	f.addApartment(t, "1-A")

	if _, err := f.service.Close(ctx, 1, p); err != nil {
		t.Fatalf("close: %v", err)
	}
	locked, err := f.closings.Closed(ctx, 1, p)
	if err != nil {
		t.Fatalf("closed check: %v", err)
	}
	if !locked {
		t.Fatal("period must be locked after close")
	}
	locked, err = f.closings.Closed(ctx, 1, p.Previous())
	if err != nil {
		t.Fatalf("closed check: %v", err)
	}
	if locked {
		t.Fatal("previous period must stay open")
	}
}
