package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	banking "condoledger/internal/banking/domain"
)

// TransactionRepository is an in-memory repository for bank
// transactions.
type TransactionRepository struct {
	mu     sync.RWMutex
	nextID int64
	byRef  map[string]*banking.BankTransaction
}

// NewTransactionRepository constructs a repository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{byRef: make(map[string]*banking.BankTransaction)}
}

// InsertIfAbsent stores the transaction unless its reference exists.
func (r *TransactionRepository) InsertIfAbsent(ctx context.Context, t *banking.BankTransaction) (bool, error) {
	_ = ctx
	if strings.TrimSpace(t.Reference) == "" {
		return false, banking.ErrEmptyReference
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRef[t.Reference]; ok {
		return false, nil
	}
	r.nextID++
	t.ID = r.nextID
	copy := *t
	r.byRef[t.Reference] = &copy
	return true, nil
}

// FindByReferenceSuffix returns transactions ending with suffix.
func (r *TransactionRepository) FindByReferenceSuffix(ctx context.Context, suffix string) ([]banking.BankTransaction, error) {
	_ = ctx
	if suffix == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []banking.BankTransaction
	for _, t := range r.byRef {
		if banking.Suffix(t.Reference) == suffix {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Count returns the number of stored transactions.
func (r *TransactionRepository) Count(ctx context.Context) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRef), nil
}

// ListByBatch returns transactions inserted by one upload.
func (r *TransactionRepository) ListByBatch(ctx context.Context, batchID string) ([]banking.BankTransaction, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []banking.BankTransaction
	for _, t := range r.byRef {
		if t.BatchID == batchID {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
