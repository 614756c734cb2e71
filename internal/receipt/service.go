package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=receipt
type Repository interface {
	// InsertReceipts writes every row in one statement; either all rows exist afterwards or none do.
	InsertReceipts(ctx context.Context, rows []*Receipt) error
	// ListReceipts returns the user's rows, newest first.
	ListReceipts(ctx context.Context, userID uuid.UUID) ([]*Receipt, error)
	ListGroup(ctx context.Context, userID, groupID uuid.UUID) ([]*Receipt, error)
	GetReceipt(ctx context.Context, userID, id uuid.UUID) (*Receipt, error)
	UpdateReceipt(ctx context.Context, userID, id uuid.UUID, patch Patch) (*Receipt, error)
	// DeleteReceipts removes the targeted rows of the user and returns them.
	DeleteReceipts(ctx context.Context, userID uuid.UUID, target DeleteTarget) ([]*Receipt, error)
	// ImageInUse reports whether any row of the user still references path.
	ImageInUse(ctx context.Context, userID uuid.UUID, path string) (bool, error)
}

type ImageStore interface {
	Delete(ctx context.Context, path string) error
}

// Indexer schedules embedding generation for a saved row. It must not block.
type Indexer interface {
	Enqueue(r *Receipt) bool
}

type Service struct {
	repo    Repository
	images  ImageStore
	indexer Indexer
}

// NewService builds the grouping service. images and indexer may be nil, in
// which case image cleanup and embedding scheduling are skipped.
func NewService(repo Repository, images ImageStore, indexer Indexer) *Service {
	return &Service{repo: repo, images: images, indexer: indexer}
}

type SaveResult struct {
	Rows    []*Receipt
	GroupID uuid.NullUUID
}

func (s *Service) Save(ctx context.Context, userID uuid.UUID, in Input, src Source) (*SaveResult, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	if src.ProcessingMethod == "" {
		src.ProcessingMethod = ProcessingManual
	}

	var result SaveResult

	switch v := in.(type) {
	case SingleProductInput:
		r := newRow(userID, v.Purchase, v.Product, src)
		r.ReceiptTotal = v.Product.Amount
		result.Rows = []*Receipt{r}
	case MultiProductInput:
		groupID := uuid.New()
		total := v.ReceiptTotal()

		result.GroupID = uuid.NullUUID{UUID: groupID, Valid: true}
		result.Rows = make([]*Receipt, 0, len(v.Products))

		for _, p := range v.Products {
			r := newRow(userID, v.Purchase, p, src)
			r.ReceiptTotal = total
			r.IsGroupReceipt = true
			r.ReceiptGroupID = result.GroupID
			result.Rows = append(result.Rows, r)
		}
	}

	if err := s.repo.InsertReceipts(ctx, result.Rows); err != nil {
		return nil, err
	}

	if s.indexer != nil {
		for _, r := range result.Rows {
			s.indexer.Enqueue(r)
		}
	}

	return &result, nil
}

func newRow(userID uuid.UUID, purchase Purchase, p Product, src Source) *Receipt {
	return &Receipt{
		ID:                 uuid.New(),
		UserID:             userID,
		ProductDescription: p.ProductDescription,
		BrandName:          p.BrandName,
		ModelNumber:        p.ModelNumber,
		StoreName:          purchase.StoreName,
		PurchaseLocation:   purchase.PurchaseLocation,
		PurchaseDate:       purchase.PurchaseDate,
		Country:            purchase.Country,
		Amount:             p.Amount,
		WarrantyPeriod:     p.WarrantyPeriod,
		ExtendedWarranty:   p.ExtendedWarranty,
		ImageURL:           src.ImageURL,
		ImagePath:          src.ImagePath,
		ProcessingMethod:   src.ProcessingMethod,
		OCRConfidence:      src.OCRConfidence,
		ExtractedText:      src.ExtractedText,
	}
}

// Grouped reloads the user's rows and reassembles them into display views.
func (s *Service) Grouped(ctx context.Context, userID uuid.UUID) ([]View, error) {
	rows, err := s.repo.ListReceipts(ctx, userID)
	if err != nil {
		return nil, err
	}

	return GroupRows(rows), nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Receipt, error) {
	return s.repo.ListReceipts(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Receipt, error) {
	return s.repo.GetReceipt(ctx, userID, id)
}

// Delete removes a row or a whole group, then cleans up images no other row
// references. Image cleanup failures are logged and never returned.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, target DeleteTarget) error {
	if target.RowID.Valid == target.GroupID.Valid {
		return fmt.Errorf("%w: exactly one of row id or group id is required", ErrInvalidInput)
	}

	deleted, err := s.repo.DeleteReceipts(ctx, userID, target)
	if err != nil {
		return err
	}

	if len(deleted) == 0 {
		return ErrNotFound
	}

	s.removeImages(ctx, userID, deleted)

	return nil
}

func (s *Service) removeImages(ctx context.Context, userID uuid.UUID, rows []*Receipt) {
	if s.images == nil {
		return
	}

	seen := make(map[string]struct{}, len(rows))

	for _, r := range rows {
		if r.ImagePath == "" {
			continue
		}

		if _, ok := seen[r.ImagePath]; ok {
			continue
		}

		seen[r.ImagePath] = struct{}{}

		inUse, err := s.repo.ImageInUse(ctx, userID, r.ImagePath)
		if err != nil {
			slog.Warn("failed to check receipt image references", "path", r.ImagePath, "error", err)
			continue
		}

		if inUse {
			continue
		}

		if err := s.images.Delete(ctx, r.ImagePath); err != nil {
			slog.Warn("failed to delete receipt image", "path", r.ImagePath, "error", err)
		}
	}
}

// Update applies a partial edit to one row. The row's embedding is left as is.
// Purchase fields of a grouped row are only accepted through UpdateGroup.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, patch Patch) (*Receipt, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	if patch.touchesPurchase() {
		row, err := s.repo.GetReceipt(ctx, userID, id)
		if err != nil {
			return nil, err
		}

		if row.IsGroupReceipt {
			return nil, fmt.Errorf("%w: purchase fields of a grouped row are changed through its group", ErrInvalidInput)
		}
	}

	return s.repo.UpdateReceipt(ctx, userID, id, patch)
}

// UpdateGroup applies the same patch to every row of a group, one row at a
// time. It is not atomic and stops at the first failing row.
func (s *Service) UpdateGroup(ctx context.Context, userID, groupID uuid.UUID, patch Patch) ([]*Receipt, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListGroup(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	updated := make([]*Receipt, 0, len(rows))

	for _, r := range rows {
		u, err := s.repo.UpdateReceipt(ctx, userID, r.ID, patch)
		if err != nil {
			return updated, fmt.Errorf("update row %s: %w", r.ID, err)
		}

		updated = append(updated, u)
	}

	return updated, nil
}

func validatePatch(p Patch) error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	fields := map[string]string{}

	required := map[string]*string{
		"product_description": p.ProductDescription,
		"brand_name":          p.BrandName,
		"warranty_period":     p.WarrantyPeriod,
	}

	for name, v := range required {
		if v != nil && strings.TrimSpace(*v) == "" {
			fields[name] = "is required"
		}
	}

	if p.PurchaseDate != nil && p.PurchaseDate.IsZero() {
		fields["purchase_date"] = "is required"
	}

	if p.Amount != nil && !p.Amount.IsPositive() {
		fields["amount"] = "must be positive"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	return nil
}
