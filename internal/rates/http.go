package rates

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Handler exposes the exchange rate series.
type Handler struct {
	store *Store
}

// NewHandler constructs a handler.
func NewHandler(store *Store) (*Handler, error) {
	if store == nil {
		return nil, errors.New("rates handler: nil store")
	}
	return &Handler{store: store}, nil
}

// ServeHTTP handles /api/v1/rates.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodPut:
		h.handleUpsert(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date  string  `json:"date"`
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	if req.Value <= 0 {
		http.Error(w, "value must be positive", http.StatusBadRequest)
		return
	}
	if err := h.store.Upsert(r.Context(), date, req.Value); err != nil {
		http.Error(w, "upsert failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"date": req.Date, "value": req.Value})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	date := time.Now().UTC()
	if raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		date = parsed
	}
	value, err := h.store.FindAtOrBefore(r.Context(), date)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"date":  date.Format("2006-01-02"),
		"value": value,
	})
}
