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

// PaymentHandler handles payment notification APIs.
type PaymentHandler struct {
	payments    billing.PaymentRepository
	guard       billing.PeriodGuard
	auditLogger audit.Logger
}

// NewPaymentHandler constructs a handler.
func NewPaymentHandler(payments billing.PaymentRepository, guard billing.PeriodGuard, auditLogger audit.Logger) (*PaymentHandler, error) {
	if payments == nil {
		return nil, errors.New("payment handler: nil repository")
	}
	return &PaymentHandler{payments: payments, guard: guard, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/payments.
func (h *PaymentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/payments" {
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
	rest := strings.TrimPrefix(path, "/api/v1/payments/")
	parts := strings.Split(rest, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if len(parts) == 2 && parts[1] == "approve" && r.Method == http.MethodPost {
		h.handleApprove(w, r, id)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *PaymentHandler) handleList(w http.ResponseWriter, r *http.Request) {
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
	list, err := h.payments.ListByPeriod(r.Context(), condominiumID, period)
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, n := range list {
		out = append(out, paymentToJSON(n))
	}
	writeJSON(w, out)
}

func (h *PaymentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CondominiumID int64   `json:"condominium_id"`
		ApartmentCode string  `json:"apartment_code"`
		Date          string  `json:"date"`
		AmountUSD     float64 `json:"amount_usd"`
		AmountBs      float64 `json:"amount_bs"`
		ExchangeRate  float64 `json:"exchange_rate"`
		Reference     string  `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		http.Error(w, "reference required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ApartmentCode) == "" {
		http.Error(w, "apartment_code required", http.StatusBadRequest)
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
	n := &billing.PaymentNotification{
		CondominiumID: req.CondominiumID,
		ApartmentCode: req.ApartmentCode,
		Date:          date,
		AmountUSD:     req.AmountUSD,
		AmountBs:      req.AmountBs,
		ExchangeRate:  req.ExchangeRate,
		Reference:     strings.TrimSpace(req.Reference),
	}
	if err := h.payments.Create(r.Context(), n); err != nil {
		respondBillingError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, paymentToJSON(*n))
	logAudit(h.auditLogger, r, n.CondominiumID, "payment", n.ID, "payment.notify", map[string]any{
		"apartment_code": n.ApartmentCode,
		"amount_usd":     n.AmountUSD,
		"reference":      n.Reference,
	})
}

func (h *PaymentHandler) handleApprove(w http.ResponseWriter, r *http.Request, id int64) {
	n, err := h.payments.FindByID(r.Context(), id)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if n == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if h.periodLocked(w, r, n.CondominiumID, n.Period()) {
		return
	}
	if err := h.payments.Approve(r.Context(), id); err != nil {
		respondBillingError(w, err)
		return
	}
	writeJSON(w, map[string]any{"id": id, "approval_status": billing.ApprovalApproved})
	logAudit(h.auditLogger, r, n.CondominiumID, "payment", id, "payment.approve", map[string]any{
		"apartment_code": n.ApartmentCode,
	})
}

func (h *PaymentHandler) periodLocked(w http.ResponseWriter, r *http.Request, condominiumID int64, p billing.Period) bool {
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

func paymentToJSON(n billing.PaymentNotification) map[string]any {
	return map[string]any{
		"id":                    n.ID,
		"condominium_id":        n.CondominiumID,
		"apartment_code":        n.ApartmentCode,
		"date":                  n.Date.Format("2006-01-02"),
		"amount_usd":            n.AmountUSD,
		"amount_bs":             n.AmountBs,
		"exchange_rate":         n.ExchangeRate,
		"reference":             n.Reference,
		"approval_status":       n.ApprovalStatus,
		"reconciliation_status": n.ReconciliationStatus,
	}
}
