package billing

import (
	"strings"
	"time"
)

// Condominium is the top-level tenant boundary for all financial data.
type Condominium struct {
	ID        int64
	Name      string
	Tower     string
	TaxID     string
	Address   string
	Active    bool
	CreatedAt time.Time
}

// Apartment is a billable unit within a condominium.
// Unique by (condominium, code).
type Apartment struct {
	ID            int64
	CondominiumID int64
	Code          string
	Owner         string
	CreatedAt     time.Time
}

// NormalizeCode upper-cases and trims an apartment code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
