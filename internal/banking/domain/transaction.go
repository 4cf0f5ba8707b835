package banking

import (
	"context"
	"errors"
	"time"
)

// BankTransaction is one normalized statement line. References are
// globally unique; re-uploading a statement never duplicates rows.
// Charges carry a negative amount.
type BankTransaction struct {
	ID        int64
	Date      time.Time
	Reference string
	Amount    float64
	BatchID   string
	CreatedAt time.Time
}

// IsCharge reports whether the transaction debits the account.
func (t BankTransaction) IsCharge() bool {
	return t.Amount < 0
}

var (
	// ErrEmptyReference is returned for a transaction without a reference.
	ErrEmptyReference = errors.New("banking: empty reference")
)

// SuffixLen is the number of trailing reference characters used for
// matching. Banks truncate or left-pad references, so only the suffix
// is stable across the statement and the customer's receipt.
const SuffixLen = 6

// Suffix returns the last SuffixLen characters of a reference.
func Suffix(reference string) string {
	if len(reference) <= SuffixLen {
		return reference
	}
	return reference[len(reference)-SuffixLen:]
}

// TransactionRepository persists bank transactions.
type TransactionRepository interface {
	// InsertIfAbsent stores the transaction unless its reference already
	// exists, and reports whether a row was inserted.
	InsertIfAbsent(ctx context.Context, t *BankTransaction) (bool, error)
	// FindByReferenceSuffix returns transactions whose reference ends
	// with the given suffix.
	FindByReferenceSuffix(ctx context.Context, suffix string) ([]BankTransaction, error)
	Count(ctx context.Context) (int, error)
	ListByBatch(ctx context.Context, batchID string) ([]BankTransaction, error)
}
