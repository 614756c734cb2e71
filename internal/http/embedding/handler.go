package embedding

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	"github.com/MrJamesThe3rd/smartreceipts/internal/embedding"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

type Handler struct {
	indexer      *embedding.Indexer
	backfillSize int
}

// NewHandler builds the embedding handler. backfillSize is the batch size used
// when a backfill request does not name one.
func NewHandler(indexer *embedding.Indexer, backfillSize int) *Handler {
	return &Handler{indexer: indexer, backfillSize: backfillSize}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.generate)
	r.Post("/backfill", h.backfill)
}

type GenerateRequest struct {
	Content   string    `json:"content"`
	ReceiptID uuid.UUID `json:"receiptId"`
}

type GenerateResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type BackfillRequest struct {
	BatchSize int `json:"batch_size,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, GenerateResponse{Error: "unauthorized"})
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, GenerateResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	if req.ReceiptID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, GenerateResponse{Error: "receiptId is required"})
		return
	}

	err := h.indexer.IndexContent(r.Context(), userID, req.ReceiptID, req.Content)

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, GenerateResponse{Success: true})
	case errors.Is(err, embedding.ErrEmptyContent):
		writeJSON(w, http.StatusBadRequest, GenerateResponse{Error: err.Error()})
	case errors.Is(err, embedding.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, GenerateResponse{Error: err.Error()})
	case errors.Is(err, receipt.ErrNotFound):
		writeJSON(w, http.StatusNotFound, GenerateResponse{Error: "receipt not found"})
	default:
		slog.Error("failed to generate embedding", "receipt_id", req.ReceiptID, "error", err)
		writeJSON(w, http.StatusInternalServerError, GenerateResponse{Error: err.Error()})
	}
}

func (h *Handler) backfill(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req BackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.BatchSize <= 0 {
		req.BatchSize = h.backfillSize
	}

	res, err := h.indexer.Backfill(r.Context(), userID, req.BatchSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("embedding backfill finished",
		"user_id", userID, "processed", res.Processed, "indexed", res.Indexed, "failed", res.Failed)

	writeJSON(w, http.StatusOK, res)
}
