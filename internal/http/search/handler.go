package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	"github.com/MrJamesThe3rd/smartreceipts/internal/search"
)

type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Outcome, error)
}

type Handler struct {
	svc Searcher
}

func NewHandler(svc Searcher) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.search)
}

type Request struct {
	Query     string     `json:"query"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Threshold float64    `json:"threshold,omitempty"`
}

type Response struct {
	Results  []search.Result `json:"results"`
	Fallback bool            `json:"fallback"`
	Tier     search.Tier     `json:"tier"`
	Message  string          `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	if req.UserID != nil && *req.UserID != userID {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "userId does not match the authenticated user"})
		return
	}

	out, err := h.svc.Search(r.Context(), search.Query{
		Text:      req.Query,
		UserID:    userID,
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		if errors.Is(err, search.ErrInvalidQuery) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		slog.Error("search failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: search.ErrSearchFailed.Error()})

		return
	}

	writeJSON(w, http.StatusOK, Response{
		Results:  out.Results,
		Fallback: out.Fallback,
		Tier:     out.Tier,
		Message:  out.Message(),
	})
}
