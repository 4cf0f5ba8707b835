package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	billing "condoledger/internal/billing/domain"
	billingrepo "condoledger/internal/billing/infrastructure/postgres"
	closingapp "condoledger/internal/closing/application"
	closing "condoledger/internal/closing/domain"
	closingrepo "condoledger/internal/closing/infrastructure/postgres"
	"condoledger/internal/migrate"
	"condoledger/internal/rates"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	dir := filepath.Join("..", "..", "..", "migrations")
	if err := migrate.Apply(context.Background(), db, dir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestMonthlyClosing_FullCycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"debt_snapshots", "monthly_closings", "billing_records", "payment_notifications", "expenses", "apartments", "condominiums"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}

	var condominiumID int64
	if err := db.QueryRowContext(ctx, `
INSERT INTO condominiums (name, active) VALUES ('Torre Este', TRUE) RETURNING id`).Scan(&condominiumID); err != nil {
		t.Fatalf("insert condominium: %v", err)
	}

	apartments := billingrepo.NewApartmentRepository(db)
	expenses := billingrepo.NewExpenseRepository(db)
	payments := billingrepo.NewPaymentRepository(db)
	records := billingrepo.NewBillingRecordRepository(db)
	closings := closingrepo.NewClosingRepository(db)

	a1 := &billing.Apartment{CondominiumID: condominiumID, Code: "1-A", Owner: "Perez"}
	a2 := &billing.Apartment{CondominiumID: condominiumID, Code: "1-B", Owner: "Gomez"}
	for _, a := range []*billing.Apartment{a1, a2} {
		if err := apartments.Create(ctx, a); err != nil {
			t.Fatalf("create apartment: %v", err)
		}
	}

	period := billing.Period{Year: 2025, Month: time.March}
	for _, rec := range []*billing.BillingRecord{
		{CondominiumID: condominiumID, ApartmentID: a1.ID, Year: 2025, Month: 3, QuotaUSD: 80, PaidUSD: 80},
		{CondominiumID: condominiumID, ApartmentID: a2.ID, Year: 2025, Month: 3, QuotaUSD: 80, PaidUSD: 30},
	} {
		if err := records.Upsert(ctx, rec); err != nil {
			t.Fatalf("upsert record: %v", err)
		}
	}

	n := &billing.PaymentNotification{
		CondominiumID: condominiumID,
		ApartmentCode: "1-A",
		Date:          time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
		AmountUSD:     80,
		AmountBs:      2920,
		Reference:     "000111222333",
	}
	if err := payments.Create(ctx, n); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	updated, err := payments.UpdateReconciliationStatus(ctx, n.ID, billing.ReconciliationVerified, []billing.ReconciliationStatus{billing.ReconciliationPending})
	if err != nil || !updated {
		t.Fatalf("verify payment: updated=%t err=%v", updated, err)
	}

	e := &billing.Expense{
		CondominiumID: condominiumID,
		Concept:       "VIGILANCIA",
		AmountUSD:     120,
		Date:          time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := expenses.Create(ctx, e); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	err = expenses.MarkPaid(ctx, e.ID, billing.ExpensePayment{
		PaidAmountUSD: 120,
		PaidAmountBs:  4380,
		PaidDate:      time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		Reference:     "000444555666",
	})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	rateStore := rates.NewStore(db)
	if err := rateStore.Upsert(ctx, time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC), 36.5); err != nil {
		t.Fatalf("upsert rate: %v", err)
	}

	service, err := closingapp.NewService(closings, apartments, expenses, payments, records, rateStore, log.Default())
	if err != nil {
		t.Fatalf("closing service: %v", err)
	}

	c, err := service.Close(ctx, condominiumID, period)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.TotalExpensesUSD != 120 {
		t.Fatalf("total expenses = %v", c.TotalExpensesUSD)
	}
	if c.TotalPaymentsUSD != 80 {
		t.Fatalf("total payments = %v", c.TotalPaymentsUSD)
	}
	if c.ClosingRate != 36.5 {
		t.Fatalf("closing rate = %v", c.ClosingRate)
	}

	snapshots, err := closings.ListSnapshots(ctx, c.ID)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snapshots))
	}
	if snapshots[0].ClosingBalanceUSD != 0 || snapshots[1].ClosingBalanceUSD != 50 {
		t.Fatalf("snapshots = %+v", snapshots)
	}

	if _, err := service.Close(ctx, condominiumID, period); !errors.Is(err, closing.ErrAlreadyClosed) {
		t.Fatalf("second close err = %v, want ErrAlreadyClosed", err)
	}

	locked, err := closings.Closed(ctx, condominiumID, period)
	if err != nil {
		t.Fatalf("closed check: %v", err)
	}
	if !locked {
		t.Fatal("period must be locked after close")
	}
}
