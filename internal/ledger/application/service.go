package application

import (
	"context"
	"errors"
	"log"
	"time"

	billing "condoledger/internal/billing/domain"
	closing "condoledger/internal/closing/domain"
	"condoledger/internal/observability/metrics"
)

// ClosingReader is the slice of the closing store the ledger needs.
type ClosingReader interface {
	FindByPeriod(ctx context.Context, condominiumID int64, p billing.Period) (*closing.MonthlyClosing, error)
	ListSnapshots(ctx context.Context, closingID int64) ([]closing.DebtSnapshot, error)
}

// ExpenseTotalReader reports the expense total a period's quota is
// split from.
type ExpenseTotalReader interface {
	QuotaBaseUSD(ctx context.Context, condominiumID int64, p billing.Period) (float64, error)
}

// Row is one apartment's ledger line for a period. AfterPaymentsUSD is
// the balance once the month's payments are applied but before the
// month's quota accrues.
type Row struct {
	ApartmentID      int64   `json:"apartment_id"`
	ApartmentCode    string  `json:"apartment_code"`
	Owner            string  `json:"owner"`
	OpeningUSD       float64 `json:"opening_usd"`
	PaymentsUSD      float64 `json:"payments_usd"`
	PaymentsBs       float64 `json:"payments_bs"`
	AfterPaymentsUSD float64 `json:"after_payments_usd"`
	QuotaUSD         float64 `json:"quota_usd"`
	ClosingUSD       float64 `json:"closing_usd"`
}

// Ledger is the reconstructed debt position of every apartment for one
// period.
type Ledger struct {
	CondominiumID    int64          `json:"condominium_id"`
	Period           billing.Period `json:"-"`
	PeriodLabel      string         `json:"period"`
	FromSnapshot     bool           `json:"from_snapshot"`
	Rows             []Row          `json:"rows"`
	TotalQuotaUSD    float64        `json:"total_quota_usd"`
	TotalPaymentsUSD float64        `json:"total_payments_usd"`
	TotalPaymentsBs  float64        `json:"total_payments_bs"`
	TotalClosingUSD  float64        `json:"total_closing_usd"`
}

// Service reconstructs per-apartment debt ledgers. When the previous
// month was closed the opening balances come from its frozen snapshot;
// otherwise they are derived backwards from the live balances.
type Service struct {
	apartments billing.ApartmentRepository
	payments   billing.PaymentRepository
	records    billing.BillingRecordRepository
	expenses   ExpenseTotalReader
	closings   ClosingReader
	logger     *log.Logger
}

// NewService constructs a service.
func NewService(
	apartments billing.ApartmentRepository,
	payments billing.PaymentRepository,
	records billing.BillingRecordRepository,
	expenses ExpenseTotalReader,
	closings ClosingReader,
	logger *log.Logger,
) (*Service, error) {
	if apartments == nil {
		return nil, errors.New("ledger service: nil apartment repository")
	}
	if payments == nil {
		return nil, errors.New("ledger service: nil payment repository")
	}
	if records == nil {
		return nil, errors.New("ledger service: nil billing record repository")
	}
	if expenses == nil {
		return nil, errors.New("ledger service: nil expense reader")
	}
	if closings == nil {
		return nil, errors.New("ledger service: nil closing reader")
	}
	return &Service{
		apartments: apartments,
		payments:   payments,
		records:    records,
		expenses:   expenses,
		closings:   closings,
		logger:     logger,
	}, nil
}

// ComputeLedger builds the ledger for one condominium period.
func (s *Service) ComputeLedger(ctx context.Context, condominiumID int64, p billing.Period) (*Ledger, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveLedger(result, time.Since(start))
	}()

	ledger := &Ledger{CondominiumID: condominiumID, Period: p, PeriodLabel: p.String()}

	apartments, err := s.apartments.ListByCondominium(ctx, condominiumID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if len(apartments) == 0 {
		return ledger, nil
	}

	quotaBase, err := s.expenses.QuotaBaseUSD(ctx, condominiumID, p)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	quota := quotaBase / float64(len(apartments))

	openings, fromSnapshot, err := s.openingBalances(ctx, condominiumID, p)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	ledger.FromSnapshot = fromSnapshot

	var liveBalances map[int64]float64
	if !fromSnapshot {
		liveBalances, err = s.records.OutstandingByApartment(ctx, condominiumID, p)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
	}

	for _, apt := range apartments {
		paid, paidBs, err := s.payments.SumByApartmentAndPeriod(ctx, condominiumID, apt.Code, p)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
		row := Row{
			ApartmentID:   apt.ID,
			ApartmentCode: apt.Code,
			Owner:         apt.Owner,
			QuotaUSD:      quota,
			PaymentsUSD:   paid,
			PaymentsBs:    paidBs,
		}
		if fromSnapshot {
			row.OpeningUSD = openings[apt.ID]
			row.ClosingUSD = row.OpeningUSD + row.QuotaUSD - row.PaymentsUSD
		} else {
			// No frozen snapshot for the prior month: work backwards
			// from the live balance.
			row.ClosingUSD = liveBalances[apt.ID]
			row.OpeningUSD = row.ClosingUSD - row.QuotaUSD + row.PaymentsUSD
		}
		row.AfterPaymentsUSD = row.OpeningUSD - row.PaymentsUSD
		ledger.Rows = append(ledger.Rows, row)
		ledger.TotalQuotaUSD += row.QuotaUSD
		ledger.TotalPaymentsUSD += row.PaymentsUSD
		ledger.TotalPaymentsBs += row.PaymentsBs
		ledger.TotalClosingUSD += row.ClosingUSD
	}

	s.logf("ledger computed: condominium=%d period=%s snapshot=%t apartments=%d",
		condominiumID, p, fromSnapshot, len(ledger.Rows))
	return ledger, nil
}

// openingBalances loads the prior month's frozen snapshot when one
// exists.
func (s *Service) openingBalances(ctx context.Context, condominiumID int64, p billing.Period) (map[int64]float64, bool, error) {
	prior, err := s.closings.FindByPeriod(ctx, condominiumID, p.Previous())
	if err != nil {
		return nil, false, err
	}
	if prior == nil {
		return nil, false, nil
	}
	snapshots, err := s.closings.ListSnapshots(ctx, prior.ID)
	if err != nil {
		return nil, false, err
	}
	openings := make(map[int64]float64, len(snapshots))
	for _, snap := range snapshots {
		openings[snap.ApartmentID] = snap.ClosingBalanceUSD
	}
	return openings, true, nil
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
