package export

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	"github.com/MrJamesThe3rd/smartreceipts/internal/export"
	receiptapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/library"
	"github.com/MrJamesThe3rd/smartreceipts/internal/warranty"
)

const summaryFileName = "summary.txt"

type Handler struct {
	svc *export.Service
	now func() time.Time
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.metadata)
	r.Post("/download", h.download)
}

// Request selects rows with the same filters as the library view.
type Request struct {
	Brands     []string         `json:"brands,omitempty"`
	Categories []string         `json:"categories,omitempty"`
	Statuses   []string         `json:"statuses,omitempty"`
	MinPrice   *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice   *decimal.Decimal `json:"max_price,omitempty"`
	Sort       string           `json:"sort,omitempty"`
}

func (req Request) filters() (library.Filters, library.SortKey, error) {
	f := library.Filters{Brands: req.Brands, Categories: req.Categories}

	for _, s := range req.Statuses {
		st, err := warranty.ParseStatus(s)
		if err != nil {
			return f, "", err
		}

		f.Statuses = append(f.Statuses, st)
	}

	if req.MinPrice != nil {
		f.MinPrice = decimal.NewNullDecimal(*req.MinPrice)
	}

	if req.MaxPrice != nil {
		f.MaxPrice = decimal.NewNullDecimal(*req.MaxPrice)
	}

	if req.Sort == "" {
		return f, library.SortDateDesc, nil
	}

	key, err := library.ParseSortKey(req.Sort)

	return f, key, err
}

type ItemResponse struct {
	Receipt        receiptapi.Response `json:"receipt"`
	WarrantyExpiry time.Time           `json:"warranty_expiry,omitzero"`
	DaysLeft       int                 `json:"days_left"`
	Status         warranty.Status     `json:"status"`
}

type MetadataResponse struct {
	Items   []ItemResponse `json:"items"`
	Summary string         `json:"summary"`
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (library.Filters, library.SortKey, bool) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return library.Filters{}, "", false
	}

	f, key, err := req.filters()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return library.Filters{}, "", false
	}

	return f, key, true
}

func (h *Handler) metadata(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	f, key, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	items, err := h.svc.Select(r.Context(), userID, f, key, h.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := MetadataResponse{
		Items:   make([]ItemResponse, 0, len(items)),
		Summary: export.Summary(items),
	}

	for _, item := range items {
		resp.Items = append(resp.Items, ItemResponse{
			Receipt:        receiptapi.ToResponse(item.Receipt),
			WarrantyExpiry: item.Warranty.Expiry,
			DaysLeft:       item.Warranty.DaysLeft,
			Status:         item.Warranty.Badge,
		})
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	f, key, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	tmpDir, err := os.MkdirTemp("", "smartreceipts-export-*")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tmpDir)

	now := h.now()

	items, err := h.svc.Export(r.Context(), userID, f, key, tmpDir, now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := os.WriteFile(filepath.Join(tmpDir, summaryFileName), []byte(export.Summary(items)), 0o644); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"receipts_%s.zip\"", now.Format("20060102")))

	zipWriter := zip.NewWriter(w)
	defer zipWriter.Close()

	err = filepath.Walk(tmpDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		relPath, _ := filepath.Rel(tmpDir, path)

		zf, err := zipWriter.Create(relPath)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(zf, f)

		return err
	})
	if err != nil {
		slog.Error("failed to create zip", "error", err)
	}
}
