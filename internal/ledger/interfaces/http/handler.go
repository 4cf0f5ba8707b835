package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	billing "condoledger/internal/billing/domain"
	ledgerapp "condoledger/internal/ledger/application"
	"condoledger/internal/ledger/interfaces"
)

// Handler serves the reconstructed debt ledger and its exports.
type Handler struct {
	service *ledgerapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *ledgerapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("ledger handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles routes under /api/v1/ledger.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/ledger":
		h.handleGet(w, r)
	case "/api/v1/ledger/export.xlsx":
		h.handleExport(w, r, "xlsx")
	case "/api/v1/ledger/export.pdf":
		h.handleExport(w, r, "pdf")
	case "/api/v1/ledger/receipt":
		h.handleReceipt(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) compute(w http.ResponseWriter, r *http.Request) *ledgerapp.Ledger {
	condominiumID, err := strconv.ParseInt(r.URL.Query().Get("condominium_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid condominium_id", http.StatusBadRequest)
		return nil
	}
	period, err := billing.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		http.Error(w, "invalid period", http.StatusBadRequest)
		return nil
	}
	ledger, err := h.service.ComputeLedger(r.Context(), condominiumID, period)
	if err != nil {
		http.Error(w, "ledger failed", http.StatusInternalServerError)
		return nil
	}
	return ledger
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ledger := h.compute(w, r)
	if ledger == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ledger)
}

// handleReceipt serves the collection notice figures for one
// apartment: previous debt, the month's quota and the total payable.
func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	code := billing.NormalizeCode(r.URL.Query().Get("apartment_code"))
	if code == "" {
		http.Error(w, "apartment_code required", http.StatusBadRequest)
		return
	}
	ledger := h.compute(w, r)
	if ledger == nil {
		return
	}
	for _, row := range ledger.Rows {
		if row.ApartmentCode != code {
			continue
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"condominium_id":    ledger.CondominiumID,
			"period":            ledger.PeriodLabel,
			"apartment_code":    row.ApartmentCode,
			"owner":             row.Owner,
			"previous_debt_usd": row.OpeningUSD,
			"payments_usd":      row.PaymentsUSD,
			"payments_bs":       row.PaymentsBs,
			"quota_usd":         row.QuotaUSD,
			"total_payable_usd": row.AfterPaymentsUSD + row.QuotaUSD,
		})
		return
	}
	http.Error(w, "apartment not found", http.StatusNotFound)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	ledger := h.compute(w, r)
	if ledger == nil {
		return
	}
	var data []byte
	var err error
	var contentType string
	if format == "pdf" {
		data, err = interfaces.BuildLedgerPDF(ledger)
		contentType = "application/pdf"
	} else {
		data, err = interfaces.BuildLedgerXLSX(ledger)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
