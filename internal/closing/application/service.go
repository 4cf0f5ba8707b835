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

// Service runs monthly closings: it freezes the month's totals, the
// exchange rate in force at month end and a per-apartment debt
// snapshot.
type Service struct {
	closings   closing.Repository
	apartments billing.ApartmentRepository
	expenses   billing.ExpenseRepository
	payments   billing.PaymentRepository
	records    billing.BillingRecordRepository
	rates      billing.RateProvider
	logger     *log.Logger
}

// NewService constructs a service.
func NewService(
	closings closing.Repository,
	apartments billing.ApartmentRepository,
	expenses billing.ExpenseRepository,
	payments billing.PaymentRepository,
	records billing.BillingRecordRepository,
	rates billing.RateProvider,
	logger *log.Logger,
) (*Service, error) {
	if closings == nil {
		return nil, errors.New("closing service: nil closing repository")
	}
	if apartments == nil {
		return nil, errors.New("closing service: nil apartment repository")
	}
	if expenses == nil {
		return nil, errors.New("closing service: nil expense repository")
	}
	if payments == nil {
		return nil, errors.New("closing service: nil payment repository")
	}
	if records == nil {
		return nil, errors.New("closing service: nil billing record repository")
	}
	if rates == nil {
		return nil, errors.New("closing service: nil rate provider")
	}
	return &Service{
		closings:   closings,
		apartments: apartments,
		expenses:   expenses,
		payments:   payments,
		records:    records,
		rates:      rates,
		logger:     logger,
	}, nil
}

// Close freezes one condominium month. Everything from the totals to
// the snapshot inserts runs inside one repository transaction, so the
// frozen figures come from a single consistent view of the data. The
// unique constraint inside CreateWithSnapshots settles concurrent
// closes.
func (s *Service) Close(ctx context.Context, condominiumID int64, p billing.Period) (*closing.MonthlyClosing, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveClose(result, time.Since(start))
	}()

	var c *closing.MonthlyClosing
	err := s.closings.InTx(ctx, func(ctx context.Context) error {
		exists, err := s.closings.Exists(ctx, condominiumID, p)
		if err != nil {
			return err
		}
		if exists {
			return closing.ErrAlreadyClosed
		}

		apartments, err := s.apartments.ListByCondominium(ctx, condominiumID)
		if err != nil {
			return err
		}
		if len(apartments) == 0 {
			return closing.ErrNoApartments
		}

		totalExpenses, err := s.expenses.SumUSDByPeriod(ctx, condominiumID, p)
		if err != nil {
			return err
		}
		totalPayments, err := s.payments.SumVerifiedUSDByPeriod(ctx, condominiumID, p)
		if err != nil {
			return err
		}

		monthEnd := p.End().AddDate(0, 0, -1)
		rate, err := s.rates.FindAtOrBefore(ctx, monthEnd)
		if err != nil {
			return err
		}

		outstanding, err := s.records.OutstandingByApartment(ctx, condominiumID, p)
		if err != nil {
			return err
		}

		snapshots := make([]closing.DebtSnapshot, 0, len(apartments))
		for _, apt := range apartments {
			paid, _, err := s.payments.SumByApartmentAndPeriod(ctx, condominiumID, apt.Code, p)
			if err != nil {
				return err
			}
			balance := outstanding[apt.ID]
			snapshots = append(snapshots, closing.DebtSnapshot{
				ApartmentID:       apt.ID,
				AccruedDebtUSD:    balance,
				PaidThisMonthUSD:  paid,
				ClosingBalanceUSD: balance,
			})
		}

		c = &closing.MonthlyClosing{
			CondominiumID:    condominiumID,
			Year:             p.Year,
			Month:            int(p.Month),
			TotalExpensesUSD: totalExpenses,
			TotalPaymentsUSD: totalPayments,
			ClosingRate:      rate,
		}
		return s.closings.CreateWithSnapshots(ctx, c, snapshots)
	})
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	s.logf("closed %s for condominium %d: expenses=%.2f payments=%.2f rate=%.4f",
		p, condominiumID, c.TotalExpensesUSD, c.TotalPaymentsUSD, c.ClosingRate)
	return c, nil
}

// Get returns the closing and snapshots for one period.
func (s *Service) Get(ctx context.Context, condominiumID int64, p billing.Period) (*closing.MonthlyClosing, []closing.DebtSnapshot, error) {
	c, err := s.closings.FindByPeriod(ctx, condominiumID, p)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, nil
	}
	snapshots, err := s.closings.ListSnapshots(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	return c, snapshots, nil
}

// List returns all closings for a condominium, most recent first.
func (s *Service) List(ctx context.Context, condominiumID int64) ([]closing.MonthlyClosing, error) {
	return s.closings.List(ctx, condominiumID)
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
