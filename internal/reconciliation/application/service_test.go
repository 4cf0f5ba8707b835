package application

import (
	"context"
	"log"
	"testing"
	"time"

	banking "condoledger/internal/banking/domain"
	bankmem "condoledger/internal/banking/infrastructure/memory"
	billing "condoledger/internal/billing/domain"
	billmem "condoledger/internal/billing/infrastructure/memory"
)

const condoID = int64(1)

func newTestEngine(t *testing.T) (*Engine, *billmem.PaymentRepository, *billmem.ExpenseRepository, *bankmem.TransactionRepository) {
	t.Helper()
	payments := billmem.NewPaymentRepository()
	expenses := billmem.NewExpenseRepository()
	transactions := bankmem.NewTransactionRepository()
	cfg := Config{Tolerances: Tolerances{Payment: 0.1, Expense: 0.05}}
	engine, err := NewEngine(payments, expenses, transactions, cfg, log.Default())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, payments, expenses, transactions
}

func seedPayment(t *testing.T, repo *billmem.PaymentRepository, reference string, amountBs float64) *billing.PaymentNotification {
	t.Helper()
	n := &billing.PaymentNotification{
		CondominiumID: condoID,
		ApartmentCode: "4-A",
		Date:          time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		AmountUSD:     amountBs / 36.5,
		AmountBs:      amountBs,
		ExchangeRate:  36.5,
		Reference:     reference,
	}
	if err := repo.Create(context.Background(), n); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return n
}

func seedTransaction(t *testing.T, repo *bankmem.TransactionRepository, reference string, amount float64) {
	t.Helper()
	tx := &banking.BankTransaction{
		Date:      time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		Reference: reference,
		Amount:    amount,
	}
	if _, err := repo.InsertIfAbsent(context.Background(), tx); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
}

func paymentStatus(t *testing.T, repo *billmem.PaymentRepository, id int64) billing.ReconciliationStatus {
	t.Helper()
	n, err := repo.FindByID(context.Background(), id)
	if err != nil || n == nil {
		t.Fatalf("find payment %d: %v", id, err)
	}
	return n.ReconciliationStatus
}

func TestRunVerifiesPaymentWithinTolerance(t *testing.T) {
	engine, payments, _, transactions := newTestEngine(t)
	n := seedPayment(t, payments, "001234567890", 100.09)
	seedTransaction(t, transactions, "990000567890", 100.00)

	summary, err := engine.Run(context.Background(), condoID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.PaymentsVerified != 1 {
		t.Fatalf("verified = %d, want 1", summary.PaymentsVerified)
	}
	if got := paymentStatus(t, payments, n.ID); got != billing.ReconciliationVerified {
		t.Fatalf("status = %s", got)
	}
}

func TestRunFlagsAmountMismatch(t *testing.T) {
	engine, payments, _, transactions := newTestEngine(t)
	n := seedPayment(t, payments, "001234567890", 100.11)
	seedTransaction(t, transactions, "990000567890", 100.00)

	summary, err := engine.Run(context.Background(), condoID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.PaymentsMismatch != 1 {
		t.Fatalf("mismatch = %d, want 1", summary.PaymentsMismatch)
	}
	if got := paymentStatus(t, payments, n.ID); got != billing.ReconciliationAmountMismatch {
		t.Fatalf("status = %s", got)
	}
}

func TestRunLeavesUnmatchedPending(t *testing.T) {
	engine, payments, _, _ := newTestEngine(t)
	n := seedPayment(t, payments, "001234567890", 100.00)

	if _, err := engine.Run(context.Background(), condoID); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := paymentStatus(t, payments, n.ID); got != billing.ReconciliationPending {
		t.Fatalf("status = %s, want PENDING", got)
	}
}

func TestRunRevisitsMismatchAfterNewUpload(t *testing.T) {
	engine, payments, _, transactions := newTestEngine(t)
	n := seedPayment(t, payments, "001234567890", 250.00)
	seedTransaction(t, transactions, "990000567890", 100.00)

	if _, err := engine.Run(context.Background(), condoID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := paymentStatus(t, payments, n.ID); got != billing.ReconciliationAmountMismatch {
		t.Fatalf("status after first run = %s", got)
	}

	// The correcting transaction arrives in a later statement.
	seedTransaction(t, transactions, "880000567890", 250.00)
	summary, err := engine.Run(context.Background(), condoID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.PaymentsVerified != 1 {
		t.Fatalf("verified = %d, want 1", summary.PaymentsVerified)
	}
	if got := paymentStatus(t, payments, n.ID); got != billing.ReconciliationVerified {
		t.Fatalf("status = %s", got)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	engine, payments, _, transactions := newTestEngine(t)
	n := seedPayment(t, payments, "001234567890", 100.00)
	seedTransaction(t, transactions, "990000567890", 100.00)

	if _, err := engine.Run(context.Background(), condoID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := engine.Run(context.Background(), condoID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.PaymentsExamined != 0 {
		t.Fatalf("examined = %d, verified record must not be revisited", summary.PaymentsExamined)
	}
	if got := paymentStatus(t, payments, n.ID); got != billing.ReconciliationVerified {
		t.Fatalf("status = %s", got)
	}
}

func TestRunMatchesPaymentRegardlessOfSign(t *testing.T) {
	engine, payments, _, transactions := newTestEngine(t)
	n := seedPayment(t, payments, "001234567890", 100.00)
	// Some banks list incoming transfers as negative lines; the match
	// compares absolute amounts.
	seedTransaction(t, transactions, "990000567890", -100.00)

	summary, err := engine.Run(context.Background(), condoID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.PaymentsVerified != 1 {
		t.Fatalf("verified = %d, want 1", summary.PaymentsVerified)
	}
	if got := paymentStatus(t, payments, n.ID); got != billing.ReconciliationVerified {
		t.Fatalf("status = %s", got)
	}
}

func TestRunIgnoresWrongSuffixCandidates(t *testing.T) {
	engine, payments, _, transactions := newTestEngine(t)
	n := seedPayment(t, payments, "001234567890", 100.00)
	// Same length, same amount, different last six digits.
	seedTransaction(t, transactions, "990000123456", 100.00)

	if _, err := engine.Run(context.Background(), condoID); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := paymentStatus(t, payments, n.ID); got != billing.ReconciliationPending {
		t.Fatalf("status = %s, want PENDING", got)
	}
}

func TestRunVerifiesExpenseAgainstDebit(t *testing.T) {
	engine, _, expenses, transactions := newTestEngine(t)
	exp := &billing.Expense{
		CondominiumID: condoID,
		Concept:       "MANTENIMIENTO ASCENSOR",
		AmountUSD:     50,
		Date:          time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		PaidAmountBs:  1825.04,
		PaidDate:      time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		Reference:     "004455667788",
	}
	if err := expenses.Create(context.Background(), exp); err != nil {
		t.Fatalf("seed expense: %v", err)
	}
	seedTransaction(t, transactions, "110000667788", -1825.00)

	summary, err := engine.Run(context.Background(), condoID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.ExpensesVerified != 1 {
		t.Fatalf("expenses verified = %d, want 1", summary.ExpensesVerified)
	}
	got, err := expenses.FindByID(context.Background(), exp.ID)
	if err != nil || got == nil {
		t.Fatalf("find expense: %v", err)
	}
	if got.ReconciliationStatus != billing.ReconciliationVerified {
		t.Fatalf("status = %s", got.ReconciliationStatus)
	}
}

func TestRunExpenseToleranceIsTighter(t *testing.T) {
	engine, _, expenses, transactions := newTestEngine(t)
	exp := &billing.Expense{
		CondominiumID: condoID,
		Concept:       "LIMPIEZA",
		Date:          time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		PaidAmountBs:  500.06,
		PaidDate:      time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		Reference:     "004455667788",
	}
	if err := expenses.Create(context.Background(), exp); err != nil {
		t.Fatalf("seed expense: %v", err)
	}
	seedTransaction(t, transactions, "110000667788", -500.00)

	if _, err := engine.Run(context.Background(), condoID); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, err := expenses.FindByID(context.Background(), exp.ID)
	if err != nil || got == nil {
		t.Fatalf("find expense: %v", err)
	}
	if got.ReconciliationStatus != billing.ReconciliationAmountMismatch {
		t.Fatalf("status = %s, 0.06 difference exceeds expense tolerance", got.ReconciliationStatus)
	}
}
