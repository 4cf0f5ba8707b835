package application

import (
	"context"
	"log"
	"math"
	"testing"
	"time"

	billing "condoledger/internal/billing/domain"
	billmem "condoledger/internal/billing/infrastructure/memory"
	closing "condoledger/internal/closing/domain"
	closingmem "condoledger/internal/closing/infrastructure/memory"
)

type stubExpenseTotal float64

func (s stubExpenseTotal) QuotaBaseUSD(ctx context.Context, condominiumID int64, p billing.Period) (float64, error) {
	_ = ctx
	_ = condominiumID
	_ = p
	return float64(s), nil
}

type ledgerFixture struct {
	service    *Service
	apartments *billmem.ApartmentRepository
	payments   *billmem.PaymentRepository
	records    *billmem.BillingRecordRepository
	closings   *closingmem.ClosingRepository
}

func newLedgerFixture(t *testing.T, expenseTotal float64) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		apartments: billmem.NewApartmentRepository(),
		payments:   billmem.NewPaymentRepository(),
		records:    billmem.NewBillingRecordRepository(),
		closings:   closingmem.NewClosingRepository(),
	}
	service, err := NewService(f.apartments, f.payments, f.records, stubExpenseTotal(expenseTotal), f.closings, log.Default())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.service = service
	return f
}

func (f *ledgerFixture) addApartment(t *testing.T, code string) *billing.Apartment {
	t.Helper()
	a := &billing.Apartment{CondominiumID: 1, Code: code}
	if err := f.apartments.Create(context.Background(), a); err != nil {
		t.Fatalf("add apartment: %v", err)
	}
	return a
}

func (f *ledgerFixture) addVerifiedPayment(t *testing.T, code string, amountUSD float64, date time.Time) {
	t.Helper()
	ctx := context.Background()
	n := &billing.PaymentNotification{
		CondominiumID: 1,
		ApartmentCode: code,
		Date:          date,
		AmountUSD:     amountUSD,
		AmountBs:      amountUSD * 36.5,
		ExchangeRate:  36.5,
		Reference:     "00123456" + code,
	}
	if err := f.payments.Create(ctx, n); err != nil {
		t.Fatalf("add payment: %v", err)
	}
	if _, err := f.payments.UpdateReconciliationStatus(ctx, n.ID, billing.ReconciliationVerified, []billing.ReconciliationStatus{billing.ReconciliationPending}); err != nil {
		t.Fatalf("verify payment: %v", err)
	}
}

func TestComputeLedgerFromSnapshot(t *testing.T) {
	f := newLedgerFixture(t, 100)
	ctx := context.Background()
	p := billing.Period{Year: 2025, Month: time.April}

	a1 := f.addApartment(t, "1-A")
	a2 := f.addApartment(t, "1-B")

	// March was closed: 1-A owes nothing, 1-B carries 100.
	prior := &closing.MonthlyClosing{CondominiumID: 1, Year: 2025, Month: 3}
	err := f.closings.CreateWithSnapshots(ctx, prior, []closing.DebtSnapshot{
		{ApartmentID: a1.ID, ClosingBalanceUSD: 0, AccruedDebtUSD: 0},
		{ApartmentID: a2.ID, ClosingBalanceUSD: 100, AccruedDebtUSD: 100},
	})
	if err != nil {
		t.Fatalf("seed closing: %v", err)
	}

	f.addVerifiedPayment(t, "1-A", 50, time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC))

	ledger, err := f.service.ComputeLedger(ctx, 1, p)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !ledger.FromSnapshot {
		t.Fatal("expected snapshot mode")
	}
	if len(ledger.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(ledger.Rows))
	}

	r1 := ledger.Rows[0]
	if r1.ApartmentCode != "1-A" || r1.OpeningUSD != 0 || r1.QuotaUSD != 50 || r1.PaymentsUSD != 50 {
		t.Fatalf("row 1-A = %+v", r1)
	}
	if r1.PaymentsBs != 50*36.5 {
		t.Fatalf("row 1-A payments bs = %v", r1.PaymentsBs)
	}
	if r1.ClosingUSD != 0 {
		t.Fatalf("row 1-A closing = %v", r1.ClosingUSD)
	}

	r2 := ledger.Rows[1]
	if r2.OpeningUSD != 100 || r2.ClosingUSD != 150 {
		t.Fatalf("row 1-B = %+v", r2)
	}
	if r2.AfterPaymentsUSD != 100 {
		t.Fatalf("row 1-B after payments = %v", r2.AfterPaymentsUSD)
	}
}

func TestComputeLedgerReverseMode(t *testing.T) {
	f := newLedgerFixture(t, 100)
	ctx := context.Background()
	p := billing.Period{Year: 2025, Month: time.April}

	a1 := f.addApartment(t, "1-A")
	a2 := f.addApartment(t, "1-B")

	// No prior closing. Live balances: 1-A fully paid, 1-B owes 50.
	for _, rec := range []*billing.BillingRecord{
		{CondominiumID: 1, ApartmentID: a1.ID, Year: 2025, Month: 4, QuotaUSD: 50, PaidUSD: 50},
		{CondominiumID: 1, ApartmentID: a2.ID, Year: 2025, Month: 4, QuotaUSD: 50, PaidUSD: 0},
	} {
		if err := f.records.Upsert(ctx, rec); err != nil {
			t.Fatalf("upsert record: %v", err)
		}
	}
	f.addVerifiedPayment(t, "1-A", 50, time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC))

	ledger, err := f.service.ComputeLedger(ctx, 1, p)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if ledger.FromSnapshot {
		t.Fatal("expected reverse mode")
	}

	r1 := ledger.Rows[0]
	if r1.ClosingUSD != 0 {
		t.Fatalf("row 1-A closing = %v", r1.ClosingUSD)
	}
	// opening = closing - quota + payments
	if r1.OpeningUSD != 0-50+50 {
		t.Fatalf("row 1-A opening = %v", r1.OpeningUSD)
	}
	r2 := ledger.Rows[1]
	if r2.ClosingUSD != 50 || r2.OpeningUSD != 0 {
		t.Fatalf("row 1-B = %+v", r2)
	}
}

func TestComputeLedgerBalanceIdentity(t *testing.T) {
	f := newLedgerFixture(t, 237.41)
	ctx := context.Background()
	p := billing.Period{Year: 2025, Month: time.April}

	a1 := f.addApartment(t, "2-A")
	a2 := f.addApartment(t, "2-B")
	_ = a1
	_ = a2
	f.addVerifiedPayment(t, "2-A", 73.19, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC))
	f.addVerifiedPayment(t, "2-B", 120.00, time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC))

	ledger, err := f.service.ComputeLedger(ctx, 1, p)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for _, row := range ledger.Rows {
		got := row.OpeningUSD + row.QuotaUSD - row.PaymentsUSD
		if math.Abs(got-row.ClosingUSD) > 1e-6 {
			t.Fatalf("identity violated for %s: %v != %v", row.ApartmentCode, got, row.ClosingUSD)
		}
	}
}

func TestComputeLedgerIgnoresUnverifiedPayments(t *testing.T) {
	f := newLedgerFixture(t, 100)
	ctx := context.Background()
	p := billing.Period{Year: 2025, Month: time.April}
	f.addApartment(t, "1-A")

	// Approved by the admin but never matched against the bank: it
	// does not count as collected.
	n := &billing.PaymentNotification{
		CondominiumID:  1,
		ApartmentCode:  "1-A",
		Date:           time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		AmountUSD:      50,
		AmountBs:       1825,
		Reference:      "001234561-A",
		ApprovalStatus: billing.ApprovalApproved,
	}
	if err := f.payments.Create(ctx, n); err != nil {
		t.Fatalf("add payment: %v", err)
	}

	ledger, err := f.service.ComputeLedger(ctx, 1, p)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := ledger.Rows[0].PaymentsUSD; got != 0 {
		t.Fatalf("payments = %v, want 0 for unverified notification", got)
	}
	if got := ledger.Rows[0].PaymentsBs; got != 0 {
		t.Fatalf("payments bs = %v, want 0", got)
	}
}

func TestComputeLedgerNoApartments(t *testing.T) {
	f := newLedgerFixture(t, 100)
	ledger, err := f.service.ComputeLedger(context.Background(), 1, billing.Period{Year: 2025, Month: time.April})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(ledger.Rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(ledger.Rows))
	}
	if ledger.TotalQuotaUSD != 0 {
		t.Fatalf("total quota = %v", ledger.TotalQuotaUSD)
	}
}
