package embedding

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

// Dimensions is the vector length of text-embedding-ada-002 and of the
// receipts.embedding column.
const Dimensions = 1536

var (
	ErrEmptyContent  = errors.New("embedding content is empty")
	ErrNotConfigured = errors.New("embedding provider is not configured")
)

//go:generate mockgen -source=embedding.go -destination=embedding_mock.go -package=embedding
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Store interface {
	// SetEmbedding returns receipt.ErrNotFound when the user has no such row.
	SetEmbedding(ctx context.Context, userID, rowID uuid.UUID, vec pgvector.Vector) error
	// ListMissing returns up to limit rows without an embedding whose id sorts after the given one.
	ListMissing(ctx context.Context, userID, after uuid.UUID, limit int) ([]*receipt.Receipt, error)
}

// Content builds the text that is embedded for a row: description, brand,
// model, store, location and warranty period, blanks skipped, single spaced.
func Content(r *receipt.Receipt) string {
	fields := []string{
		r.ProductDescription,
		r.BrandName,
		r.ModelNumber,
		r.StoreName,
		r.PurchaseLocation,
		r.WarrantyPeriod,
	}

	parts := make([]string, 0, len(fields))

	for _, f := range fields {
		if f = strings.Join(strings.Fields(f), " "); f != "" {
			parts = append(parts, f)
		}
	}

	return strings.Join(parts, " ")
}
