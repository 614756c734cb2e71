package brand

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	"github.com/MrJamesThe3rd/smartreceipts/internal/brand"
)

type Handler struct {
	svc *brand.Service
}

func NewHandler(svc *brand.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/suggest", h.suggest)
	r.Post("/aliases", h.learn)
}

type SuggestResponse struct {
	Raw   string `json:"raw"`
	Brand string `json:"brand"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	raw := r.URL.Query().Get("raw")
	if raw == "" {
		http.Error(w, "raw query parameter is required", http.StatusBadRequest)
		return
	}

	suggested, err := h.svc.Suggest(r.Context(), userID, raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(SuggestResponse{Raw: raw, Brand: suggested}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type LearnRequest struct {
	RawPattern string `json:"raw_pattern"`
	BrandName  string `json:"brand_name"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req LearnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.Learn(r.Context(), userID, req.RawPattern, req.BrandName); err != nil {
		if errors.Is(err, brand.ErrInvalidAlias) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusCreated)
}
