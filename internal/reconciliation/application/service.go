package application

import (
	"context"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	banking "condoledger/internal/banking/domain"
	billing "condoledger/internal/billing/domain"
	"condoledger/internal/observability/metrics"
)

// Engine matches payment notifications and paid expenses against the
// bank transaction store. Runs are serialized: concurrent triggers
// (an upload finishing while an operator reruns by hand) queue behind
// the mutex instead of double-verifying records.
type Engine struct {
	mu           sync.Mutex
	payments     billing.PaymentRepository
	expenses     billing.ExpenseRepository
	transactions banking.TransactionRepository
	cfg          Config
	logger       *log.Logger
}

// NewEngine constructs an engine.
func NewEngine(payments billing.PaymentRepository, expenses billing.ExpenseRepository, transactions banking.TransactionRepository, cfg Config, logger *log.Logger) (*Engine, error) {
	if payments == nil {
		return nil, errNilPayments
	}
	if expenses == nil {
		return nil, errNilExpenses
	}
	if transactions == nil {
		return nil, errNilTransactions
	}
	return &Engine{
		payments:     payments,
		expenses:     expenses,
		transactions: transactions,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// Summary reports the outcome of one reconciliation run.
type Summary struct {
	PaymentsExamined int `json:"payments_examined"`
	PaymentsVerified int `json:"payments_verified"`
	PaymentsMismatch int `json:"payments_mismatch"`
	ExpensesExamined int `json:"expenses_examined"`
	ExpensesVerified int `json:"expenses_verified"`
	ExpensesMismatch int `json:"expenses_mismatch"`
}

// Run reconciles all eligible records for a condominium. Records that
// fail individually are logged and skipped so one bad row never aborts
// the run.
func (e *Engine) Run(ctx context.Context, condominiumID int64) (Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReconcile(result, time.Since(start))
	}()

	var summary Summary

	notifications, err := e.payments.ListUnreconciled(ctx, condominiumID)
	if err != nil {
		result = metrics.ResultError
		return summary, err
	}
	for _, n := range notifications {
		summary.PaymentsExamined++
		e.reconcilePayment(ctx, n, &summary)
	}

	expenses, err := e.expenses.ListUnreconciledPaid(ctx, condominiumID)
	if err != nil {
		result = metrics.ResultError
		return summary, err
	}
	for _, exp := range expenses {
		summary.ExpensesExamined++
		e.reconcileExpense(ctx, exp, &summary)
	}

	e.logf("reconciliation run done: condominium=%d payments=%d/%d expenses=%d/%d",
		condominiumID, summary.PaymentsVerified, summary.PaymentsExamined,
		summary.ExpensesVerified, summary.ExpensesExamined)
	return summary, nil
}

// reconcilePayment matches a notification against transactions sharing
// its reference suffix, comparing the Bs amounts by absolute value.
// Banks disagree on the sign convention for incoming transfers, so the
// sign carries no meaning here.
func (e *Engine) reconcilePayment(ctx context.Context, n billing.PaymentNotification, summary *Summary) {
	suffix := banking.Suffix(strings.TrimSpace(n.Reference))
	if suffix == "" {
		return
	}
	candidates, err := e.transactions.FindByReferenceSuffix(ctx, suffix)
	if err != nil {
		e.logf("payment %d: suffix lookup failed: %v", n.ID, err)
		return
	}

	matched := false
	for _, tx := range candidates {
		if math.Abs(math.Abs(tx.Amount)-math.Abs(n.AmountBs)) < e.cfg.Tolerances.Payment {
			matched = true
			break
		}
	}

	// VERIFIED is terminal; PENDING and AMOUNT_MISMATCH are both
	// revisited because later uploads may carry the correcting line.
	allowedFrom := []billing.ReconciliationStatus{
		billing.ReconciliationPending,
		billing.ReconciliationAmountMismatch,
	}
	switch {
	case matched:
		updated, err := e.payments.UpdateReconciliationStatus(ctx, n.ID, billing.ReconciliationVerified, allowedFrom)
		if err != nil {
			e.logf("payment %d: status update failed: %v", n.ID, err)
			return
		}
		if updated {
			summary.PaymentsVerified++
			metrics.ObserveReconcileUpdate("payment", string(billing.ReconciliationVerified))
		}
	case len(candidates) > 0:
		updated, err := e.payments.UpdateReconciliationStatus(ctx, n.ID, billing.ReconciliationAmountMismatch, allowedFrom)
		if err != nil {
			e.logf("payment %d: status update failed: %v", n.ID, err)
			return
		}
		if updated && n.ReconciliationStatus != billing.ReconciliationAmountMismatch {
			summary.PaymentsMismatch++
			metrics.ObserveReconcileUpdate("payment", string(billing.ReconciliationAmountMismatch))
		}
	}
	// No candidates: the record stays PENDING until its transaction
	// shows up in a statement.
}

// reconcileExpense matches a paid expense against transactions sharing
// its reference suffix, comparing absolute Bs amounts.
func (e *Engine) reconcileExpense(ctx context.Context, exp billing.Expense, summary *Summary) {
	suffix := banking.Suffix(strings.TrimSpace(exp.Reference))
	if suffix == "" {
		return
	}
	candidates, err := e.transactions.FindByReferenceSuffix(ctx, suffix)
	if err != nil {
		e.logf("expense %d: suffix lookup failed: %v", exp.ID, err)
		return
	}

	matched := false
	for _, tx := range candidates {
		if math.Abs(math.Abs(tx.Amount)-math.Abs(exp.PaidAmountBs)) < e.cfg.Tolerances.Expense {
			matched = true
			break
		}
	}

	allowedFrom := []billing.ReconciliationStatus{billing.ReconciliationPending}
	switch {
	case matched:
		updated, err := e.expenses.UpdateReconciliationStatus(ctx, exp.ID, billing.ReconciliationVerified, allowedFrom)
		if err != nil {
			e.logf("expense %d: status update failed: %v", exp.ID, err)
			return
		}
		if updated {
			summary.ExpensesVerified++
			metrics.ObserveReconcileUpdate("expense", string(billing.ReconciliationVerified))
		}
	case len(candidates) > 0:
		updated, err := e.expenses.UpdateReconciliationStatus(ctx, exp.ID, billing.ReconciliationAmountMismatch, allowedFrom)
		if err != nil {
			e.logf("expense %d: status update failed: %v", exp.ID, err)
			return
		}
		if updated {
			summary.ExpensesMismatch++
			metrics.ObserveReconcileUpdate("expense", string(billing.ReconciliationAmountMismatch))
		}
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
