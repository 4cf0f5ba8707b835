package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	billing "condoledger/internal/billing/domain"
	closing "condoledger/internal/closing/domain"
)

// ClosingRepository is an in-memory repository for monthly closings.
type ClosingRepository struct {
	mu        sync.RWMutex
	nextID    int64
	closings  map[int64]*closing.MonthlyClosing
	snapshots map[int64][]closing.DebtSnapshot
}

// NewClosingRepository constructs a repository.
func NewClosingRepository() *ClosingRepository {
	return &ClosingRepository{
		closings:  make(map[int64]*closing.MonthlyClosing),
		snapshots: make(map[int64][]closing.DebtSnapshot),
	}
}

// InTx runs fn directly; the in-memory store has no transactions.
func (r *ClosingRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Exists reports whether the period has a closing.
func (r *ClosingRepository) Exists(ctx context.Context, condominiumID int64, p billing.Period) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.find(condominiumID, p) != nil, nil
}

// Closed implements the period lock consulted by billing writes.
func (r *ClosingRepository) Closed(ctx context.Context, condominiumID int64, p billing.Period) (bool, error) {
	return r.Exists(ctx, condominiumID, p)
}

func (r *ClosingRepository) find(condominiumID int64, p billing.Period) *closing.MonthlyClosing {
	for _, c := range r.closings {
		if c.CondominiumID == condominiumID && c.Year == p.Year && c.Month == int(p.Month) {
			return c
		}
	}
	return nil
}

// CreateWithSnapshots inserts the closing and its snapshots.
func (r *ClosingRepository) CreateWithSnapshots(ctx context.Context, c *closing.MonthlyClosing, snapshots []closing.DebtSnapshot) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(c.CondominiumID, c.Period()) != nil {
		return closing.ErrAlreadyClosed
	}
	r.nextID++
	c.ID = r.nextID
	c.ClosedAt = time.Now().UTC()
	copy := *c
	r.closings[c.ID] = &copy
	stored := make([]closing.DebtSnapshot, len(snapshots))
	for i, s := range snapshots {
		s.ClosingID = c.ID
		stored[i] = s
	}
	r.snapshots[c.ID] = stored
	return nil
}

// FindByPeriod loads the closing for one period.
func (r *ClosingRepository) FindByPeriod(ctx context.Context, condominiumID int64, p billing.Period) (*closing.MonthlyClosing, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.find(condominiumID, p)
	if c == nil {
		return nil, nil
	}
	copy := *c
	return &copy, nil
}

// List returns closings ordered most recent first.
func (r *ClosingRepository) List(ctx context.Context, condominiumID int64) ([]closing.MonthlyClosing, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []closing.MonthlyClosing
	for _, c := range r.closings {
		if c.CondominiumID == condominiumID {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Year != result[j].Year {
			return result[i].Year > result[j].Year
		}
		return result[i].Month > result[j].Month
	})
	return result, nil
}

// ListSnapshots returns the snapshots of one closing.
func (r *ClosingRepository) ListSnapshots(ctx context.Context, closingID int64) ([]closing.DebtSnapshot, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.snapshots[closingID]
	result := make([]closing.DebtSnapshot, len(stored))
	copy(result, stored)
	sort.Slice(result, func(i, j int) bool { return result[i].ApartmentID < result[j].ApartmentID })
	return result, nil
}
