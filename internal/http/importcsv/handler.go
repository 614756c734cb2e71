package importcsv

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	receiptapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/importer"
)

type Handler struct {
	importSvc *importer.Service
}

func NewHandler(importSvc *importer.Service) *Handler {
	return &Handler{importSvc: importSvc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
}

type ImportResponse struct {
	Receipts int                   `json:"receipts"`
	Imported int                   `json:"imported"`
	Rows     []receiptapi.Response `json:"rows"`
	Errors   []importer.LineError  `json:"errors"`
	Error    string                `json:"error,omitempty"`
}

func toImportResponse(result *importer.Result) ImportResponse {
	return ImportResponse{
		Receipts: result.Receipts,
		Imported: result.Imported,
		Rows:     receiptapi.ToResponseList(result.Rows),
		Errors:   result.Errors,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	result, err := h.importSvc.Import(r.Context(), userID, file)

	switch {
	case err == nil:
	case errors.Is(err, importer.ErrMissingColumns), result == nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		// The receipts saved before the failure stay saved; report them alongside the error.
		resp := toImportResponse(result)
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)

		return
	}

	slog.Info("receipts imported", "user_id", userID, "receipts", result.Receipts, "rows", result.Imported, "errors", len(result.Errors))

	writeJSON(w, http.StatusCreated, toImportResponse(result))
}
