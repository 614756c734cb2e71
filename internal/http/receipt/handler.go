package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	"github.com/MrJamesThe3rd/smartreceipts/internal/library"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/storage"
	"github.com/MrJamesThe3rd/smartreceipts/internal/warranty"
)

type ImageStore interface {
	Upload(ctx context.Context, userID uuid.UUID, fileName string, body io.Reader) (*storage.Object, error)
	SignedURL(ctx context.Context, path string) (string, error)
}

type Handler struct {
	svc    *receipt.Service
	images ImageStore
	now    func() time.Time
}

// NewHandler builds the receipts handler. images may be nil, which disables
// image upload and URL re-signing.
func NewHandler(svc *receipt.Service, images ImageStore) *Handler {
	return &Handler{svc: svc, images: images, now: time.Now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.save)
	r.Get("/", h.grouped)
	r.Get("/items", h.items)

	r.Post("/images", h.uploadImage)
	r.Get("/images/url", h.imageURL)

	r.Patch("/groups/{groupID}", h.updateGroup)
	r.Delete("/groups/{groupID}", h.deleteGroup)

	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto status codes. Store failures are passed
// through with their message.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, receipt.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, receipt.ErrNotFound):
		http.Error(w, "receipt not found", http.StatusNotFound)
	default:
		http.Error(w, rootCause(err).Error(), http.StatusInternalServerError)
	}
}

// rootCause strips the context added on the way up so store failures reach
// the client with the driver's own message.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}

		err = next
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}

	return userID, ok
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID != nil && *req.UserID != userID {
		http.Error(w, "user_id does not match the authenticated user", http.StatusForbidden)
		return
	}

	if req.ImagePath != "" && !storage.OwnedBy(req.ImagePath, userID) {
		http.Error(w, "image_path does not belong to the authenticated user", http.StatusForbidden)
		return
	}

	if len(req.Extracted) == 0 {
		http.Error(w, "extracted is required", http.StatusBadRequest)
		return
	}

	in, err := receipt.ParseExtracted(req.Extracted)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Save(r.Context(), userID, in, receipt.Source{
		ImageURL:         req.ImageURL,
		ImagePath:        req.ImagePath,
		ProcessingMethod: req.ProcessingMethod,
		OCRConfidence:    req.OCRConfidence,
		ExtractedText:    req.ExtractedText,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := SaveResponse{Success: true, Rows: ToResponseList(result.Rows)}
	if result.GroupID.Valid {
		resp.GroupID = &result.GroupID.UUID
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) grouped(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	views, err := h.svc.Grouped(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]ViewResponse, 0, len(views))
	for _, v := range views {
		vr := ToViewResponse(v)
		vr.ImageURL = h.freshURL(r.Context(), vr.ImagePath, vr.ImageURL)
		resp = append(resp, vr)
	}

	writeJSON(w, http.StatusOK, resp)
}

// freshURL re-signs the image when storage is available, keeping the stored
// URL if signing fails.
func (h *Handler) freshURL(ctx context.Context, path, stored string) string {
	if h.images == nil || path == "" {
		return stored
	}

	url, err := h.images.SignedURL(ctx, path)
	if err != nil {
		slog.Warn("failed to sign receipt image url", "path", path, "error", err)
		return stored
	}

	return url
}

func (h *Handler) items(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	filters, key, err := parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ToResponseList(library.Apply(rows, filters, key, h.now())))
}

func parseFilters(r *http.Request) (library.Filters, library.SortKey, error) {
	q := r.URL.Query()

	f := library.Filters{
		Brands:     q["brand"],
		Categories: q["category"],
	}

	for _, s := range q["status"] {
		st, err := warranty.ParseStatus(s)
		if err != nil {
			return f, "", err
		}

		f.Statuses = append(f.Statuses, st)
	}

	for name, dst := range map[string]*decimal.NullDecimal{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		s := q.Get(name)
		if s == "" {
			continue
		}

		d, err := decimal.NewFromString(s)
		if err != nil {
			return f, "", errors.New("invalid " + name)
		}

		*dst = decimal.NewNullDecimal(d)
	}

	key := library.SortDateDesc

	if s := q.Get("sort"); s != "" {
		k, err := library.ParseSortKey(s)
		if err != nil {
			return f, "", err
		}

		key = k
	}

	return f, key, nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ToResponse(rec))
}

func decodePatch(w http.ResponseWriter, r *http.Request) (receipt.Patch, bool) {
	var req PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return receipt.Patch{}, false
	}

	patch, err := req.Patch()
	if err != nil {
		writeError(w, err)
		return receipt.Patch{}, false
	}

	return patch, true
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	patch, ok := decodePatch(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Update(r.Context(), userID, id, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ToResponse(rec))
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}

	patch, ok := decodePatch(w, r)
	if !ok {
		return
	}

	rows, err := h.svc.UpdateGroup(r.Context(), userID, groupID, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ToResponseList(rows))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), userID, receipt.DeleteRow(id)); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), userID, receipt.DeleteGroup(groupID)); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if h.images == nil {
		http.Error(w, "image storage is not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	obj, err := h.images.Upload(r.Context(), userID, header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType):
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		case errors.Is(err, storage.ErrTooLarge):
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}

		return
	}

	writeJSON(w, http.StatusCreated, ImageResponse{Path: obj.Path, SignedURL: obj.SignedURL, ExpiresAt: obj.ExpiresAt})
}

func (h *Handler) imageURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if h.images == nil {
		http.Error(w, "image storage is not configured", http.StatusServiceUnavailable)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	if !storage.OwnedBy(path, userID) {
		http.Error(w, "receipt image not found", http.StatusNotFound)
		return
	}

	url, err := h.images.SignedURL(r.Context(), path)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, ImageResponse{Path: path, SignedURL: url})
}
