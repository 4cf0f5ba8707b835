package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"condoledger/internal/audit"
	"condoledger/internal/auth"
	"condoledger/internal/statement"
	statementapp "condoledger/internal/statement/application"
)

// 15 MB is plenty for a monthly statement workbook.
const maxUploadBytes = 15 << 20

// UploadHandler accepts bank statement uploads, either an xlsx file or
// pasted text.
type UploadHandler struct {
	service     *statementapp.IngestService
	auditLogger audit.Logger
}

// NewUploadHandler constructs a handler.
func NewUploadHandler(service *statementapp.IngestService, auditLogger audit.Logger) (*UploadHandler, error) {
	if service == nil {
		return nil, errors.New("upload handler: nil service")
	}
	return &UploadHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST /api/v1/bank/upload.
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	condominiumID, err := condominiumIDFromRequest(r)
	if err != nil {
		http.Error(w, "invalid condominium_id", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	var summary *statementapp.Summary
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		summary, err = h.service.IngestWorkbook(r.Context(), condominiumID, file)
		if err != nil {
			respondIngestError(w, err)
			return
		}
	} else if text := r.FormValue("text"); text != "" {
		summary, err = h.service.IngestText(r.Context(), condominiumID, text)
		if err != nil {
			respondIngestError(w, err)
			return
		}
	} else {
		http.Error(w, "file or text required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
	h.logAudit(r, condominiumID, summary)
}

func condominiumIDFromRequest(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("condominium_id")
	if raw == "" {
		raw = r.FormValue("condominium_id")
	}
	if raw == "" {
		return 0, errors.New("missing condominium_id")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func respondIngestError(w http.ResponseWriter, err error) {
	if errors.Is(err, statement.ErrParseFailure) {
		http.Error(w, "unable to parse statement", http.StatusBadRequest)
		return
	}
	http.Error(w, "upload failed", http.StatusInternalServerError)
}

func (h *UploadHandler) logAudit(r *http.Request, condominiumID int64, summary *statementapp.Summary) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"batch_id":       summary.BatchID,
		"detected":       summary.Detected,
		"newly_inserted": summary.NewlyInserted,
		"total_fees":     summary.TotalFees,
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		ID:            audit.NewID(),
		Actor:         auth.SubjectFromContext(r.Context()),
		Role:          string(auth.RoleFromContext(r.Context())),
		Action:        "bank.upload",
		ResourceType:  "bank_statement",
		ResourceID:    summary.BatchID,
		CondominiumID: strconv.FormatInt(condominiumID, 10),
		Metadata:      meta,
		PayloadDigest: audit.DigestJSON(meta),
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
}
