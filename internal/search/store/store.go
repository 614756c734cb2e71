package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/smartreceipts/internal/search"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type resultRow struct {
	ID                 uuid.UUID           `db:"id"`
	ProductDescription string              `db:"product_description"`
	BrandName          string              `db:"brand_name"`
	ModelNumber        string              `db:"model_number"`
	PurchaseDate       time.Time           `db:"purchase_date"`
	Amount             decimal.NullDecimal `db:"amount"`
	WarrantyPeriod     string              `db:"warranty_period"`
	Similarity         float64             `db:"similarity"`
}

func (r resultRow) toResult() search.Result {
	return search.Result{
		ID:             r.ID,
		Title:          r.ProductDescription,
		Brand:          r.BrandName,
		Model:          r.ModelNumber,
		PurchaseDate:   r.PurchaseDate,
		Amount:         r.Amount,
		WarrantyPeriod: r.WarrantyPeriod,
		RelevanceScore: r.Similarity,
	}
}

func toResults(rows []resultRow) []search.Result {
	results := make([]search.Result, len(rows))
	for i, r := range rows {
		results[i] = r.toResult()
	}

	return results
}

func (s *Store) MatchReceipts(ctx context.Context, userID uuid.UUID, vec pgvector.Vector, threshold float64, limit int) ([]search.Result, error) {
	query := `
		SELECT id, product_description, brand_name, COALESCE(model_number, '') AS model_number,
			purchase_date, amount, warranty_period, similarity
		FROM match_receipts_simple($1, $2, $3, $4)
	`

	var rows []resultRow
	if err := s.db.SelectContext(ctx, &rows, query, vec, threshold, limit, userID); err != nil {
		return nil, fmt.Errorf("matching receipts: %w", err)
	}

	return toResults(rows), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) SearchText(ctx context.Context, userID uuid.UUID, text string, limit int) ([]search.Result, error) {
	query := `
		SELECT id, product_description, brand_name, COALESCE(model_number, '') AS model_number,
			purchase_date, amount, warranty_period, 0::float8 AS similarity
		FROM receipts
		WHERE user_id = $1
		  AND (product_description ILIKE $2 ESCAPE '\'
		    OR brand_name ILIKE $2 ESCAPE '\'
		    OR model_number ILIKE $2 ESCAPE '\'
		    OR store_name ILIKE $2 ESCAPE '\')
		ORDER BY created_at DESC
		LIMIT $3
	`

	pattern := "%" + likeEscaper.Replace(text) + "%"

	var rows []resultRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, pattern, limit); err != nil {
		return nil, fmt.Errorf("searching receipts: %w", err)
	}

	return toResults(rows), nil
}
