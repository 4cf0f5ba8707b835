package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"condoledger/internal/audit"
	billing "condoledger/internal/billing/domain"
)

// ApartmentHandler handles apartment APIs, including the receivables
// summary built from billing records.
type ApartmentHandler struct {
	apartments  billing.ApartmentRepository
	records     billing.BillingRecordRepository
	auditLogger audit.Logger
}

// NewApartmentHandler constructs a handler.
func NewApartmentHandler(apartments billing.ApartmentRepository, records billing.BillingRecordRepository, auditLogger audit.Logger) (*ApartmentHandler, error) {
	if apartments == nil {
		return nil, errors.New("apartment handler: nil apartment repository")
	}
	if records == nil {
		return nil, errors.New("apartment handler: nil billing record repository")
	}
	return &ApartmentHandler{apartments: apartments, records: records, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/apartments.
func (h *ApartmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/apartments" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case r.URL.Path == "/api/v1/apartments" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case r.URL.Path == "/api/v1/apartments/receivables" && r.Method == http.MethodGet:
		h.handleReceivables(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/apartments/") && r.Method == http.MethodPut:
		h.handleUpdate(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ApartmentHandler) handleList(w http.ResponseWriter, r *http.Request) {
	condominiumID, err := queryInt64(r, "condominium_id")
	if err != nil {
		http.Error(w, "invalid condominium_id", http.StatusBadRequest)
		return
	}
	list, err := h.apartments.ListByCondominium(r.Context(), condominiumID)
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, a := range list {
		out = append(out, map[string]any{
			"id":             a.ID,
			"condominium_id": a.CondominiumID,
			"code":           a.Code,
			"owner":          a.Owner,
		})
	}
	writeJSON(w, out)
}

func (h *ApartmentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CondominiumID int64  `json:"condominium_id"`
		Code          string `json:"code"`
		Owner         string `json:"owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		http.Error(w, "code required", http.StatusBadRequest)
		return
	}
	a := &billing.Apartment{
		CondominiumID: req.CondominiumID,
		Code:          req.Code,
		Owner:         strings.TrimSpace(req.Owner),
	}
	if err := h.apartments.Create(r.Context(), a); err != nil {
		http.Error(w, "create failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"id": a.ID, "code": a.Code})
	logAudit(h.auditLogger, r, a.CondominiumID, "apartment", a.ID, "apartment.create", map[string]any{
		"code": a.Code,
	})
}

func (h *ApartmentHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/v1/apartments/"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Owner string `json:"owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		http.Error(w, "owner required", http.StatusBadRequest)
		return
	}
	if err := h.apartments.UpdateOwner(r.Context(), id, owner); err != nil {
		if errors.Is(err, billing.ErrApartmentNotFound) {
			http.Error(w, "apartment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"id": id, "owner": owner})
	logAudit(h.auditLogger, r, 0, "apartment", id, "apartment.update", map[string]any{
		"owner": owner,
	})
}

// handleReceivables reports the outstanding balance per apartment up
// to and including the requested period.
func (h *ApartmentHandler) handleReceivables(w http.ResponseWriter, r *http.Request) {
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
	apartments, err := h.apartments.ListByCondominium(r.Context(), condominiumID)
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	outstanding, err := h.records.OutstandingByApartment(r.Context(), condominiumID, period)
	if err != nil {
		http.Error(w, "receivables failed", http.StatusInternalServerError)
		return
	}

	// An apartment is solvent while its debt stays inside the payment
	// matching tolerance.
	const solventThreshold = 0.1
	rows := make([]map[string]any, 0, len(apartments))
	var total float64
	for _, a := range apartments {
		balance := outstanding[a.ID]
		total += balance
		rows = append(rows, map[string]any{
			"apartment_id":    a.ID,
			"apartment_code":  a.Code,
			"owner":           a.Owner,
			"outstanding_usd": balance,
			"solvent":         balance <= solventThreshold,
		})
	}
	writeJSON(w, map[string]any{
		"condominium_id":        condominiumID,
		"period":                period.String(),
		"rows":                  rows,
		"total_outstanding_usd": total,
	})
}
