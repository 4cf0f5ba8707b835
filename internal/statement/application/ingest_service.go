package application

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	banking "condoledger/internal/banking/domain"
	billing "condoledger/internal/billing/domain"
	"condoledger/internal/observability/metrics"
	reconapp "condoledger/internal/reconciliation/application"
	"condoledger/internal/statement"
)

// feeConcept is the concept booked for bank commissions found in a
// statement, and systemReference marks rows the service created itself.
const (
	feeConcept      = "COMISION BANCARIA"
	systemReference = "SISTEMA"
)

// IngestService turns raw statements into stored bank transactions and
// triggers reconciliation afterwards.
type IngestService struct {
	transactions banking.TransactionRepository
	expenses     billing.ExpenseRepository
	rates        billing.RateProvider
	guard        billing.PeriodGuard
	recon        *reconapp.Engine
	logger       *log.Logger
}

// NewIngestService constructs a service. The period guard may be nil
// when no closing store is wired.
func NewIngestService(
	transactions banking.TransactionRepository,
	expenses billing.ExpenseRepository,
	rates billing.RateProvider,
	guard billing.PeriodGuard,
	recon *reconapp.Engine,
	logger *log.Logger,
) (*IngestService, error) {
	if transactions == nil {
		return nil, errors.New("ingest service: nil transaction repository")
	}
	if expenses == nil {
		return nil, errors.New("ingest service: nil expense repository")
	}
	if rates == nil {
		return nil, errors.New("ingest service: nil rate provider")
	}
	if recon == nil {
		return nil, errors.New("ingest service: nil reconciliation engine")
	}
	return &IngestService{
		transactions: transactions,
		expenses:     expenses,
		rates:        rates,
		guard:        guard,
		recon:        recon,
		logger:       logger,
	}, nil
}

// Summary reports the outcome of one statement upload.
type Summary struct {
	BatchID        string           `json:"batch_id"`
	Detected       int              `json:"detected"`
	NewlyInserted  int              `json:"newly_inserted"`
	TotalFees      float64          `json:"total_fees"`
	FeesBooked     bool             `json:"fees_booked"`
	Reconciliation reconapp.Summary `json:"reconciliation"`
}

// IngestWorkbook normalizes and stores an xlsx statement.
func (s *IngestService) IngestWorkbook(ctx context.Context, condominiumID int64, r io.Reader) (*Summary, error) {
	result, err := statement.ParseWorkbook(r)
	if err != nil {
		metrics.ObserveStatementUpload(metrics.ResultError, 0, 0, 0)
		return nil, err
	}
	return s.store(ctx, condominiumID, result)
}

// IngestText normalizes and stores a pasted text statement.
func (s *IngestService) IngestText(ctx context.Context, condominiumID int64, text string) (*Summary, error) {
	result, err := statement.ParseText(text)
	if err != nil {
		metrics.ObserveStatementUpload(metrics.ResultError, 0, 0, 0)
		return nil, err
	}
	return s.store(ctx, condominiumID, result)
}

func (s *IngestService) store(ctx context.Context, condominiumID int64, parsed *statement.Result) (*Summary, error) {
	start := time.Now()
	summary := &Summary{
		BatchID:   uuid.NewString(),
		Detected:  len(parsed.Transactions),
		TotalFees: parsed.TotalFees,
	}

	for _, tx := range parsed.Transactions {
		record := &banking.BankTransaction{
			Date:      tx.Date,
			Reference: tx.Reference,
			Amount:    tx.Amount,
			BatchID:   summary.BatchID,
		}
		inserted, err := s.transactions.InsertIfAbsent(ctx, record)
		if err != nil {
			metrics.ObserveStatementUpload(metrics.ResultError, summary.Detected, summary.NewlyInserted, time.Since(start))
			return nil, err
		}
		if inserted {
			summary.NewlyInserted++
		}
	}

	if parsed.TotalFees > 0 && summary.NewlyInserted > 0 {
		booked, err := s.bookFees(ctx, condominiumID, parsed)
		if err != nil {
			s.logf("fee booking failed: %v", err)
		}
		summary.FeesBooked = booked
	}

	reconSummary, err := s.recon.Run(ctx, condominiumID)
	if err != nil {
		metrics.ObserveStatementUpload(metrics.ResultError, summary.Detected, summary.NewlyInserted, time.Since(start))
		return nil, err
	}
	summary.Reconciliation = reconSummary

	metrics.ObserveStatementUpload(metrics.ResultSuccess, summary.Detected, summary.NewlyInserted, time.Since(start))
	s.logf("statement ingested: batch=%s detected=%d inserted=%d fees=%.2f",
		summary.BatchID, summary.Detected, summary.NewlyInserted, summary.TotalFees)
	return summary, nil
}

// bookFees records the statement's commissions as a paid expense,
// converted at the rate in force on the first of the statement month.
func (s *IngestService) bookFees(ctx context.Context, condominiumID int64, parsed *statement.Result) (bool, error) {
	date := earliestDate(parsed.Transactions)
	if date.IsZero() {
		return false, nil
	}
	period := billing.PeriodOf(date)
	if s.guard != nil {
		locked, err := s.guard.Closed(ctx, condominiumID, period)
		if err != nil {
			return false, err
		}
		if locked {
			s.logf("fee booking skipped: period %s already closed", period)
			return false, nil
		}
	}

	rate, err := s.rates.FindAtOrBefore(ctx, period.Start())
	if err != nil {
		return false, err
	}
	amountUSD := 0.0
	if rate > 0 {
		amountUSD = parsed.TotalFees / rate
	}
	expense := &billing.Expense{
		CondominiumID: condominiumID,
		Concept:       feeConcept,
		AmountUSD:     amountUSD,
		AmountBs:      parsed.TotalFees,
		Date:          date,
		ExchangeRate:  rate,
		PaidAmountUSD: amountUSD,
		PaidAmountBs:  parsed.TotalFees,
		PaidDate:      date,
		Reference:     systemReference,
		// The fee comes straight out of the statement, so it needs no
		// further bank verification.
		PaidExchangeRate:     rate,
		ReconciliationStatus: billing.ReconciliationVerified,
	}
	if err := s.expenses.Create(ctx, expense); err != nil {
		return false, err
	}
	return true, nil
}

func earliestDate(txs []statement.Transaction) time.Time {
	var earliest time.Time
	for _, tx := range txs {
		if earliest.IsZero() || tx.Date.Before(earliest) {
			earliest = tx.Date
		}
	}
	return earliest
}

func (s *IngestService) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
