package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	billing "condoledger/internal/billing/domain"
)

// ApartmentRepository is an in-memory repository for apartments.
type ApartmentRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*billing.Apartment
}

// NewApartmentRepository constructs a repository.
func NewApartmentRepository() *ApartmentRepository {
	return &ApartmentRepository{data: make(map[int64]*billing.Apartment)}
}

// Create inserts an apartment and assigns an id.
func (r *ApartmentRepository) Create(ctx context.Context, a *billing.Apartment) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	a.Code = billing.NormalizeCode(a.Code)
	copy := *a
	r.data[a.ID] = &copy
	return nil
}

// UpdateOwner renames an apartment's owner.
func (r *ApartmentRepository) UpdateOwner(ctx context.Context, id int64, owner string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.data[id]
	if a == nil {
		return billing.ErrApartmentNotFound
	}
	a.Owner = owner
	return nil
}

// FindByID loads an apartment by id.
func (r *ApartmentRepository) FindByID(ctx context.Context, id int64) (*billing.Apartment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	a := r.data[id]
	if a == nil {
		return nil, nil
	}
	copy := *a
	return &copy, nil
}

// FindByCode loads an apartment by code.
func (r *ApartmentRepository) FindByCode(ctx context.Context, condominiumID int64, code string) (*billing.Apartment, error) {
	_ = ctx
	code = billing.NormalizeCode(code)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.data {
		if a.CondominiumID == condominiumID && a.Code == code {
			copy := *a
			return &copy, nil
		}
	}
	return nil, nil
}

// ListByCondominium returns apartments ordered by code.
func (r *ApartmentRepository) ListByCondominium(ctx context.Context, condominiumID int64) ([]billing.Apartment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []billing.Apartment
	for _, a := range r.data {
		if a.CondominiumID == condominiumID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

// CountByCondominium returns the number of apartments.
func (r *ApartmentRepository) CountByCondominium(ctx context.Context, condominiumID int64) (int, error) {
	list, err := r.ListByCondominium(ctx, condominiumID)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// ExpenseRepository is an in-memory repository for expenses.
type ExpenseRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*billing.Expense
}

// NewExpenseRepository constructs a repository.
func NewExpenseRepository() *ExpenseRepository {
	return &ExpenseRepository{data: make(map[int64]*billing.Expense)}
}

// Create inserts an expense and assigns an id.
func (r *ExpenseRepository) Create(ctx context.Context, e *billing.Expense) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	if e.ReconciliationStatus == "" {
		e.ReconciliationStatus = billing.ReconciliationPending
	}
	copy := *e
	r.data[e.ID] = &copy
	return nil
}

// FindByID loads an expense by id.
func (r *ExpenseRepository) FindByID(ctx context.Context, id int64) (*billing.Expense, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.data[id]
	if e == nil {
		return nil, nil
	}
	copy := *e
	return &copy, nil
}

// ListByPeriod returns expenses dated inside a period.
func (r *ExpenseRepository) ListByPeriod(ctx context.Context, condominiumID int64, p billing.Period) ([]billing.Expense, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []billing.Expense
	for _, e := range r.data {
		if e.CondominiumID == condominiumID && p.Contains(e.Date) {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListUnreconciledPaid returns paid expenses pending verification.
func (r *ExpenseRepository) ListUnreconciledPaid(ctx context.Context, condominiumID int64) ([]billing.Expense, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []billing.Expense
	for _, e := range r.data {
		if e.CondominiumID != condominiumID {
			continue
		}
		if e.ReconciliationStatus != billing.ReconciliationPending {
			continue
		}
		if strings.TrimSpace(e.Reference) == "" || e.PaidDate.IsZero() {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MarkPaid records payment details on an expense.
func (r *ExpenseRepository) MarkPaid(ctx context.Context, id int64, payment billing.ExpensePayment) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.data[id]
	if e == nil {
		return billing.ErrExpenseNotFound
	}
	e.PaidAmountUSD = payment.PaidAmountUSD
	e.PaidAmountBs = payment.PaidAmountBs
	e.PaidDate = payment.PaidDate
	e.PaidExchangeRate = payment.PaidExchangeRate
	e.Reference = strings.TrimSpace(payment.Reference)
	e.ReconciliationStatus = billing.ReconciliationPending
	return nil
}

// UpdateReconciliationStatus transitions the status when allowed.
func (r *ExpenseRepository) UpdateReconciliationStatus(ctx context.Context, id int64, to billing.ReconciliationStatus, allowedFrom []billing.ReconciliationStatus) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.data[id]
	if e == nil {
		return false, nil
	}
	for _, from := range allowedFrom {
		if e.ReconciliationStatus == from {
			e.ReconciliationStatus = to
			return true, nil
		}
	}
	return false, nil
}

// Delete removes an expense.
func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data[id] == nil {
		return billing.ErrExpenseNotFound
	}
	delete(r.data, id)
	return nil
}

// SumUSDByPeriod totals billed expense amounts dated inside a period,
// paid or not.
func (r *ExpenseRepository) SumUSDByPeriod(ctx context.Context, condominiumID int64, p billing.Period) (float64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total float64
	for _, e := range r.data {
		if e.CondominiumID == condominiumID && p.Contains(e.Date) {
			total += e.AmountUSD
		}
	}
	return total, nil
}

// PaymentRepository is an in-memory repository for payment
// notifications.
type PaymentRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*billing.PaymentNotification
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{data: make(map[int64]*billing.PaymentNotification)}
}

// Create inserts a notification and assigns an id.
func (r *PaymentRepository) Create(ctx context.Context, n *billing.PaymentNotification) error {
	_ = ctx
	if strings.TrimSpace(n.Reference) == "" {
		return billing.ErrEmptyReference
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	if n.ApprovalStatus == "" {
		n.ApprovalStatus = billing.ApprovalPending
	}
	if n.ReconciliationStatus == "" {
		n.ReconciliationStatus = billing.ReconciliationPending
	}
	n.ApartmentCode = billing.NormalizeCode(n.ApartmentCode)
	copy := *n
	r.data[n.ID] = &copy
	return nil
}

// FindByID loads a notification by id.
func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*billing.PaymentNotification, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := r.data[id]
	if n == nil {
		return nil, nil
	}
	copy := *n
	return &copy, nil
}

// ListByPeriod returns notifications dated inside a period.
func (r *PaymentRepository) ListByPeriod(ctx context.Context, condominiumID int64, p billing.Period) ([]billing.PaymentNotification, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []billing.PaymentNotification
	for _, n := range r.data {
		if n.CondominiumID == condominiumID && p.Contains(n.Date) {
			result = append(result, *n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListUnreconciled returns notifications eligible for matching.
func (r *PaymentRepository) ListUnreconciled(ctx context.Context, condominiumID int64) ([]billing.PaymentNotification, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []billing.PaymentNotification
	for _, n := range r.data {
		if n.CondominiumID != condominiumID {
			continue
		}
		if n.ReconciliationStatus != billing.ReconciliationPending &&
			n.ReconciliationStatus != billing.ReconciliationAmountMismatch {
			continue
		}
		result = append(result, *n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Approve marks a notification approved.
func (r *PaymentRepository) Approve(ctx context.Context, id int64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.data[id]
	if n == nil {
		return billing.ErrPaymentNotFound
	}
	n.ApprovalStatus = billing.ApprovalApproved
	return nil
}

// UpdateReconciliationStatus transitions the status when allowed.
func (r *PaymentRepository) UpdateReconciliationStatus(ctx context.Context, id int64, to billing.ReconciliationStatus, allowedFrom []billing.ReconciliationStatus) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.data[id]
	if n == nil {
		return false, nil
	}
	for _, from := range allowedFrom {
		if n.ReconciliationStatus == from {
			n.ReconciliationStatus = to
			return true, nil
		}
	}
	return false, nil
}

// SumVerifiedUSDByPeriod totals bank-verified payments inside a period.
func (r *PaymentRepository) SumVerifiedUSDByPeriod(ctx context.Context, condominiumID int64, p billing.Period) (float64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total float64
	for _, n := range r.data {
		if n.CondominiumID == condominiumID && p.Contains(n.Date) &&
			n.ReconciliationStatus == billing.ReconciliationVerified {
			total += n.AmountUSD
		}
	}
	return total, nil
}

// SumByApartmentAndPeriod totals bank-verified payments for one
// apartment within a period, in both currencies.
func (r *PaymentRepository) SumByApartmentAndPeriod(ctx context.Context, condominiumID int64, apartmentCode string, p billing.Period) (float64, float64, error) {
	_ = ctx
	apartmentCode = billing.NormalizeCode(apartmentCode)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var usd, bs float64
	for _, n := range r.data {
		if n.CondominiumID != condominiumID || n.ApartmentCode != apartmentCode {
			continue
		}
		if !p.Contains(n.Date) {
			continue
		}
		if n.ReconciliationStatus != billing.ReconciliationVerified {
			continue
		}
		usd += n.AmountUSD
		bs += n.AmountBs
	}
	return usd, bs, nil
}

// BillingRecordRepository is an in-memory repository for per-apartment
// period charges.
type BillingRecordRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*billing.BillingRecord
}

// NewBillingRecordRepository constructs a repository.
func NewBillingRecordRepository() *BillingRecordRepository {
	return &BillingRecordRepository{data: make(map[int64]*billing.BillingRecord)}
}

// Upsert inserts or replaces the record for (apartment, year, month).
func (r *BillingRecordRepository) Upsert(ctx context.Context, rec *billing.BillingRecord) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if existing.ApartmentID == rec.ApartmentID && existing.Year == rec.Year && existing.Month == rec.Month {
			existing.QuotaUSD = rec.QuotaUSD
			existing.PaidUSD = rec.PaidUSD
			rec.ID = existing.ID
			return nil
		}
	}
	r.nextID++
	rec.ID = r.nextID
	copy := *rec
	r.data[rec.ID] = &copy
	return nil
}

// ListByPeriod returns records for one period ordered by apartment.
func (r *BillingRecordRepository) ListByPeriod(ctx context.Context, condominiumID int64, p billing.Period) ([]billing.BillingRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []billing.BillingRecord
	for _, rec := range r.data {
		if rec.CondominiumID == condominiumID && rec.Year == p.Year && rec.Month == int(p.Month) {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ApartmentID < result[j].ApartmentID })
	return result, nil
}

// OutstandingByApartment sums unpaid balances per apartment up to and
// including p.
func (r *BillingRecordRepository) OutstandingByApartment(ctx context.Context, condominiumID int64, p billing.Period) (map[int64]float64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[int64]float64)
	for _, rec := range r.data {
		if rec.CondominiumID != condominiumID {
			continue
		}
		if rec.Year > p.Year || (rec.Year == p.Year && rec.Month > int(p.Month)) {
			continue
		}
		result[rec.ApartmentID] += rec.QuotaUSD - rec.PaidUSD
	}
	return result, nil
}
