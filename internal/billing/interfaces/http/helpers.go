package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"condoledger/internal/audit"
	"condoledger/internal/auth"
	billing "condoledger/internal/billing/domain"
)

func queryInt64(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, errors.New("missing " + key)
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondBillingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrExpenseNotFound),
		errors.Is(err, billing.ErrPaymentNotFound),
		errors.Is(err, billing.ErrApartmentNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, billing.ErrPeriodLocked):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, billing.ErrEmptyReference), errors.Is(err, billing.ErrInvalidPeriod):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func logAudit(logger audit.Logger, r *http.Request, condominiumID int64, resourceType string, resourceID int64, action string, meta map[string]any) {
	if logger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = logger.Log(r.Context(), audit.Entry{
		ID:            audit.NewID(),
		Actor:         auth.SubjectFromContext(r.Context()),
		Role:          string(auth.RoleFromContext(r.Context())),
		Action:        action,
		ResourceType:  resourceType,
		ResourceID:    strconv.FormatInt(resourceID, 10),
		CondominiumID: strconv.FormatInt(condominiumID, 10),
		Metadata:      payload,
		PayloadDigest: audit.DigestJSON(payload),
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
}
