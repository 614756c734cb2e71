package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=importer
type Saver interface {
	Save(ctx context.Context, userID uuid.UUID, in receipt.Input, src receipt.Source) (*receipt.SaveResult, error)
}

type BrandNormalizer interface {
	Normalize(ctx context.Context, userID uuid.UUID, raw string) (string, error)
}

type Service struct {
	parser *Parser
	saver  Saver
	brands BrandNormalizer
}

// NewService builds the importer. brands may be nil, in which case brand
// names are saved as written in the file.
func NewService(saver Saver, brands BrandNormalizer) *Service {
	return &Service{parser: NewParser(), saver: saver, brands: brands}
}

type Result struct {
	Receipts int                `json:"receipts"`
	Imported int                `json:"imported"`
	Rows     []*receipt.Receipt `json:"-"`
	Errors   []LineError        `json:"errors"`
}

// Import saves every receipt found in r. Receipts that fail validation are
// reported per line and skipped; any other save failure stops the import,
// leaving the receipts saved so far in place.
func (s *Service) Import(ctx context.Context, userID uuid.UUID, r io.Reader) (*Result, error) {
	records, lineErrs, err := s.parser.Parse(r)
	if err != nil {
		return nil, err
	}

	result := &Result{Errors: lineErrs}
	if result.Errors == nil {
		result.Errors = []LineError{}
	}

	src := receipt.Source{ProcessingMethod: receipt.ProcessingCSVImport}

	for _, rec := range records {
		in := s.normalizeBrands(ctx, userID, rec.Input)

		saved, err := s.saver.Save(ctx, userID, in, src)
		if err != nil {
			if errors.Is(err, receipt.ErrInvalidInput) {
				result.Errors = append(result.Errors, LineError{Line: rec.Line, Message: err.Error()})
				continue
			}

			return result, fmt.Errorf("line %d: %w", rec.Line, err)
		}

		result.Receipts++
		result.Imported += len(saved.Rows)
		result.Rows = append(result.Rows, saved.Rows...)
	}

	return result, nil
}

func (s *Service) normalizeBrands(ctx context.Context, userID uuid.UUID, in receipt.Input) receipt.Input {
	if s.brands == nil {
		return in
	}

	switch v := in.(type) {
	case receipt.SingleProductInput:
		v.Product.BrandName = s.normalize(ctx, userID, v.Product.BrandName)
		return v
	case receipt.MultiProductInput:
		products := make([]receipt.Product, len(v.Products))
		for i, p := range v.Products {
			p.BrandName = s.normalize(ctx, userID, p.BrandName)
			products[i] = p
		}

		v.Products = products

		return v
	}

	return in
}

func (s *Service) normalize(ctx context.Context, userID uuid.UUID, raw string) string {
	if raw == "" {
		return raw
	}

	brand, err := s.brands.Normalize(ctx, userID, raw)
	if err != nil {
		slog.Warn("failed to normalize brand", "brand", raw, "error", err)
		return raw
	}

	return brand
}
