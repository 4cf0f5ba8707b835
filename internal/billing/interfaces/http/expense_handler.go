package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"condoledger/internal/audit"
	billing "condoledger/internal/billing/domain"
)

// ExpenseHandler handles expense APIs.
type ExpenseHandler struct {
	expenses    billing.ExpenseRepository
	guard       billing.PeriodGuard
	auditLogger audit.Logger
}

// NewExpenseHandler constructs a handler.
func NewExpenseHandler(expenses billing.ExpenseRepository, guard billing.PeriodGuard, auditLogger audit.Logger) (*ExpenseHandler, error) {
	if expenses == nil {
		return nil, errors.New("expense handler: nil repository")
	}
	return &ExpenseHandler{expenses: expenses, guard: guard, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/expenses.
func (h *ExpenseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/expenses" {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	rest := strings.TrimPrefix(path, "/api/v1/expenses/")
	parts := strings.Split(rest, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case len(parts) == 2 && parts[1] == "pay" && r.Method == http.MethodPost:
		h.handlePay(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ExpenseHandler) handleList(w http.ResponseWriter, r *http.Request) {
	condominiumID, err := queryInt64(r, "condominium_id")
	if err != nil {
		http.Error(w, "invalid condominium_id", http.StatusBadRequest)
		return
	}
	period, err := billing.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		http.Error(w, "invalid period", http.StatusBadRequest)
		return
	}
	list, err := h.expenses.ListByPeriod(r.Context(), condominiumID, period)
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, expensesToJSON(list))
}

func (h *ExpenseHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CondominiumID int64   `json:"condominium_id"`
		Concept       string  `json:"concept"`
		AmountUSD     float64 `json:"amount_usd"`
		AmountBs      float64 `json:"amount_bs"`
		Date          string  `json:"date"`
		ExchangeRate  float64 `json:"exchange_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Concept) == "" {
		http.Error(w, "concept required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	if h.periodLocked(w, r, req.CondominiumID, billing.PeriodOf(date)) {
		return
	}
	expense := &billing.Expense{
		CondominiumID: req.CondominiumID,
		Concept:       strings.TrimSpace(req.Concept),
		AmountUSD:     req.AmountUSD,
		AmountBs:      req.AmountBs,
		Date:          date,
		ExchangeRate:  req.ExchangeRate,
	}
	if err := h.expenses.Create(r.Context(), expense); err != nil {
		http.Error(w, "create failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, expenseToJSON(*expense))
	h.logAudit(r, expense.CondominiumID, expense.ID, "expense.create", map[string]any{
		"concept":    expense.Concept,
		"amount_usd": expense.AmountUSD,
	})
}

func (h *ExpenseHandler) handlePay(w http.ResponseWriter, r *http.Request, id int64) {
	var req struct {
		PaidAmountUSD    float64 `json:"paid_amount_usd"`
		PaidAmountBs     float64 `json:"paid_amount_bs"`
		PaidDate         string  `json:"paid_date"`
		PaidExchangeRate float64 `json:"paid_exchange_rate"`
		Reference        string  `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	paidDate, err := time.Parse("2006-01-02", req.PaidDate)
	if err != nil {
		http.Error(w, "invalid paid_date", http.StatusBadRequest)
		return
	}
	expense, err := h.expenses.FindByID(r.Context(), id)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if expense == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if h.periodLocked(w, r, expense.CondominiumID, expense.Period()) {
		return
	}
	payment := billing.ExpensePayment{
		PaidAmountUSD:    req.PaidAmountUSD,
		PaidAmountBs:     req.PaidAmountBs,
		PaidDate:         paidDate,
		PaidExchangeRate: req.PaidExchangeRate,
		Reference:        req.Reference,
	}
	if err := h.expenses.MarkPaid(r.Context(), id, payment); err != nil {
		respondBillingError(w, err)
		return
	}
	writeJSON(w, map[string]any{"id": id, "status": "paid"})
	h.logAudit(r, expense.CondominiumID, id, "expense.pay", map[string]any{
		"paid_amount_usd": req.PaidAmountUSD,
		"reference":       req.Reference,
	})
}

func (h *ExpenseHandler) handleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	expense, err := h.expenses.FindByID(r.Context(), id)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if expense == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if h.periodLocked(w, r, expense.CondominiumID, expense.Period()) {
		return
	}
	if err := h.expenses.Delete(r.Context(), id); err != nil {
		respondBillingError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, expense.CondominiumID, id, "expense.delete", map[string]any{
		"concept": expense.Concept,
	})
}

// periodLocked rejects writes into a closed month and reports whether
// the response was already written.
func (h *ExpenseHandler) periodLocked(w http.ResponseWriter, r *http.Request, condominiumID int64, p billing.Period) bool {
	if h.guard == nil {
		return false
	}
	locked, err := h.guard.Closed(r.Context(), condominiumID, p)
	if err != nil {
		http.Error(w, "period check failed", http.StatusInternalServerError)
		return true
	}
	if locked {
		http.Error(w, billing.ErrPeriodLocked.Error(), http.StatusConflict)
		return true
	}
	return false
}

func (h *ExpenseHandler) logAudit(r *http.Request, condominiumID, resourceID int64, action string, meta map[string]any) {
	logAudit(h.auditLogger, r, condominiumID, "expense", resourceID, action, meta)
}

func expenseToJSON(e billing.Expense) map[string]any {
	out := map[string]any{
		"id":                    e.ID,
		"condominium_id":        e.CondominiumID,
		"concept":               e.Concept,
		"amount_usd":            e.AmountUSD,
		"amount_bs":             e.AmountBs,
		"date":                  e.Date.Format("2006-01-02"),
		"exchange_rate":         e.ExchangeRate,
		"reference":             e.Reference,
		"reconciliation_status": e.ReconciliationStatus,
	}
	if !e.PaidDate.IsZero() {
		out["paid_amount_usd"] = e.PaidAmountUSD
		out["paid_amount_bs"] = e.PaidAmountBs
		out["paid_date"] = e.PaidDate.Format("2006-01-02")
		out["paid_exchange_rate"] = e.PaidExchangeRate
	}
	return out
}

func expensesToJSON(list []billing.Expense) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		out = append(out, expenseToJSON(e))
	}
	return out
}
