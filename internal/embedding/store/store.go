package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SetEmbedding(ctx context.Context, userID, rowID uuid.UUID, vec pgvector.Vector) error {
	query := `
		UPDATE receipts
		SET embedding = $1
		WHERE user_id = $2 AND id = $3
	`

	res, err := s.db.ExecContext(ctx, query, vec, userID, rowID)
	if err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}

	if n == 0 {
		return receipt.ErrNotFound
	}

	return nil
}

// ListMissing pages through rows without an embedding in id order.
func (s *Store) ListMissing(ctx context.Context, userID, after uuid.UUID, limit int) ([]*receipt.Receipt, error) {
	query := `
		SELECT id, user_id, product_description, brand_name,
			COALESCE(model_number, '') AS model_number,
			COALESCE(store_name, '') AS store_name,
			COALESCE(purchase_location, '') AS purchase_location,
			warranty_period
		FROM receipts
		WHERE user_id = $1 AND embedding IS NULL AND id > $2
		ORDER BY id
		LIMIT $3
	`

	var rows []*receipt.Receipt
	if err := s.db.SelectContext(ctx, &rows, query, userID, after, limit); err != nil {
		return nil, fmt.Errorf("listing rows without embedding: %w", err)
	}

	return rows, nil
}
