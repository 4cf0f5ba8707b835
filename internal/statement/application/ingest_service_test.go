package application

import (
	"context"
	"log"
	"testing"

	bankmem "condoledger/internal/banking/infrastructure/memory"
	billing "condoledger/internal/billing/domain"
	billmem "condoledger/internal/billing/infrastructure/memory"
	"condoledger/internal/rates"
	reconapp "condoledger/internal/reconciliation/application"
	"condoledger/internal/statement"

	"time"
)

const statementText = `05/03/2025 TRANSFERENCIA RECIBIDA 001234567890 3.650,00
07/03/2025 COMISION MANTENIMIENTO 005555555555 36,50`

type ingestFixture struct {
	service      *IngestService
	transactions *bankmem.TransactionRepository
	expenses     *billmem.ExpenseRepository
	payments     *billmem.PaymentRepository
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		transactions: bankmem.NewTransactionRepository(),
		expenses:     billmem.NewExpenseRepository(),
		payments:     billmem.NewPaymentRepository(),
	}
	cfg := reconapp.Config{Tolerances: reconapp.Tolerances{Payment: 0.1, Expense: 0.05}}
	engine, err := reconapp.NewEngine(f.payments, f.expenses, f.transactions, cfg, log.Default())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	service, err := NewIngestService(f.transactions, f.expenses, rates.Fixed(36.5), nil, engine, log.Default())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.service = service
	return f
}

func TestIngestTextStoresTransactions(t *testing.T) {
	f := newIngestFixture(t)
	summary, err := f.service.IngestText(context.Background(), 1, statementText)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if summary.Detected != 2 {
		t.Fatalf("detected = %d", summary.Detected)
	}
	if summary.NewlyInserted != 2 {
		t.Fatalf("inserted = %d", summary.NewlyInserted)
	}
	if summary.BatchID == "" {
		t.Fatal("batch id must be set")
	}
	count, err := f.transactions.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("stored = %d", count)
	}
}

func TestIngestTextIsIdempotent(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	if _, err := f.service.IngestText(ctx, 1, statementText); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	summary, err := f.service.IngestText(ctx, 1, statementText)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if summary.NewlyInserted != 0 {
		t.Fatalf("inserted = %d, re-upload must not duplicate", summary.NewlyInserted)
	}
	count, _ := f.transactions.Count(ctx)
	if count != 2 {
		t.Fatalf("stored = %d", count)
	}
}

func TestIngestBooksFeeExpense(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	summary, err := f.service.IngestText(ctx, 1, statementText)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if summary.TotalFees != 36.50 {
		t.Fatalf("fees = %v", summary.TotalFees)
	}
	if !summary.FeesBooked {
		t.Fatal("fees must be booked")
	}

	period := billing.Period{Year: 2025, Month: time.March}
	expenses, err := f.expenses.ListByPeriod(ctx, 1, period)
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("got %d expenses, want 1", len(expenses))
	}
	fee := expenses[0]
	if fee.Concept != "COMISION BANCARIA" {
		t.Fatalf("concept = %q", fee.Concept)
	}
	if fee.AmountBs != 36.50 {
		t.Fatalf("amount bs = %v", fee.AmountBs)
	}
	if fee.AmountUSD != 1.0 {
		t.Fatalf("amount usd = %v", fee.AmountUSD)
	}
	if fee.ReconciliationStatus != billing.ReconciliationVerified {
		t.Fatalf("status = %s", fee.ReconciliationStatus)
	}
}

func TestIngestTriggersReconciliation(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	n := &billing.PaymentNotification{
		CondominiumID: 1,
		ApartmentCode: "3-C",
		Date:          time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		AmountUSD:     100,
		AmountBs:      3650.00,
		Reference:     "990000567890",
	}
	if err := f.payments.Create(ctx, n); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	summary, err := f.service.IngestText(ctx, 1, statementText)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if summary.Reconciliation.PaymentsVerified != 1 {
		t.Fatalf("verified = %d, want 1", summary.Reconciliation.PaymentsVerified)
	}
	got, err := f.payments.FindByID(ctx, n.ID)
	if err != nil || got == nil {
		t.Fatalf("find payment: %v", err)
	}
	if got.ReconciliationStatus != billing.ReconciliationVerified {
		t.Fatalf("status = %s", got.ReconciliationStatus)
	}
}

func TestIngestUnparseableInput(t *testing.T) {
	f := newIngestFixture(t)
	if _, err := f.service.IngestText(context.Background(), 1, "garbage"); err != statement.ErrParseFailure {
		t.Fatalf("err = %v, want ErrParseFailure", err)
	}
}
