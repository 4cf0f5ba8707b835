package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"condoledger/internal/audit"
	"condoledger/internal/auth"
	billing "condoledger/internal/billing/domain"
	closingapp "condoledger/internal/closing/application"
	closing "condoledger/internal/closing/domain"
)

// Handler handles monthly closing APIs.
type Handler struct {
	service     *closingapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *closingapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("closing handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/closings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/closings" {
		switch r.Method {
		case http.MethodPost:
			h.handleClose(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/closings/")
	if rest != "" && r.Method == http.MethodGet {
		h.handleDetail(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CondominiumID int64  `json:"condominium_id"`
		Period        string `json:"period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	period, err := billing.ParsePeriod(req.Period)
	if err != nil {
		http.Error(w, "invalid period", http.StatusBadRequest)
		return
	}
	c, err := h.service.Close(r.Context(), req.CondominiumID, period)
	if err != nil {
		respondClosingError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, closingToJSON(*c))
	h.logAudit(r, c, "closing.create")
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	condominiumID, err := strconv.ParseInt(r.URL.Query().Get("condominium_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid condominium_id", http.StatusBadRequest)
		return
	}
	list, err := h.service.List(r.Context(), condominiumID)
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		out = append(out, closingToJSON(c))
	}
	writeJSON(w, out)
}

// handleDetail serves GET /api/v1/closings/{period}?condominium_id=.
func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request, rawPeriod string) {
	condominiumID, err := strconv.ParseInt(r.URL.Query().Get("condominium_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid condominium_id", http.StatusBadRequest)
		return
	}
	period, err := billing.ParsePeriod(rawPeriod)
	if err != nil {
		http.Error(w, "invalid period", http.StatusBadRequest)
		return
	}
	c, snapshots, err := h.service.Get(r.Context(), condominiumID, period)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if c == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	rows := make([]map[string]any, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, map[string]any{
			"apartment_id":        s.ApartmentID,
			"accrued_debt_usd":    s.AccruedDebtUSD,
			"paid_this_month_usd": s.PaidThisMonthUSD,
			"closing_balance_usd": s.ClosingBalanceUSD,
		})
	}
	writeJSON(w, map[string]any{
		"closing":   closingToJSON(*c),
		"snapshots": rows,
	})
}

func closingToJSON(c closing.MonthlyClosing) map[string]any {
	return map[string]any{
		"id":                 c.ID,
		"condominium_id":     c.CondominiumID,
		"period":             c.Period().String(),
		"total_expenses_usd": c.TotalExpensesUSD,
		"total_payments_usd": c.TotalPaymentsUSD,
		"closing_rate":       c.ClosingRate,
		"closed_at":          c.ClosedAt,
	}
}

func respondClosingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, closing.ErrAlreadyClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, closing.ErrNoApartments):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "closing failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) logAudit(r *http.Request, c *closing.MonthlyClosing, action string) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"period":             c.Period().String(),
		"total_expenses_usd": c.TotalExpensesUSD,
		"total_payments_usd": c.TotalPaymentsUSD,
		"closing_rate":       c.ClosingRate,
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		ID:            audit.NewID(),
		Actor:         auth.SubjectFromContext(r.Context()),
		Role:          string(auth.RoleFromContext(r.Context())),
		Action:        action,
		ResourceType:  "closing",
		ResourceID:    strconv.FormatInt(c.ID, 10),
		CondominiumID: strconv.FormatInt(c.CondominiumID, 10),
		Metadata:      meta,
		PayloadDigest: audit.DigestJSON(meta),
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
}
