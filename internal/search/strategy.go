package search

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/MrJamesThe3rd/smartreceipts/internal/embedding"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

// VectorStrategy embeds the query and ranks rows by cosine similarity.
type VectorStrategy struct {
	embedder embedding.Embedder
	store    Store
}

func NewVectorStrategy(embedder embedding.Embedder, store Store) *VectorStrategy {
	return &VectorStrategy{embedder: embedder, store: store}
}

func (s *VectorStrategy) Tier() Tier { return TierVector }

func (s *VectorStrategy) Search(ctx context.Context, q Query) ([]Result, error) {
	if s.embedder == nil {
		return nil, embedding.ErrNotConfigured
	}

	vec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	return s.store.MatchReceipts(ctx, q.UserID, pgvector.NewVector(vec), q.Threshold, q.Limit)
}

// TextStrategy is a case-insensitive substring search in the database.
type TextStrategy struct {
	store Store
}

func NewTextStrategy(store Store) *TextStrategy {
	return &TextStrategy{store: store}
}

func (s *TextStrategy) Tier() Tier { return TierText }

func (s *TextStrategy) Search(ctx context.Context, q Query) ([]Result, error) {
	results, err := s.store.SearchText(ctx, q.UserID, q.Text, q.Limit)
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].RelevanceScore = TextScore
	}

	return results, nil
}

const (
	localMinLimit = 5
	localMaxLimit = 10
)

// LocalStrategy searches rows already held in memory. It is the last resort
// of a client that cannot reach the API.
type LocalStrategy struct {
	rows []*receipt.Receipt
}

func NewLocalStrategy(rows []*receipt.Receipt) *LocalStrategy {
	return &LocalStrategy{rows: rows}
}

func (s *LocalStrategy) Tier() Tier { return TierLocal }

func (s *LocalStrategy) Search(_ context.Context, q Query) ([]Result, error) {
	if len(s.rows) == 0 {
		return nil, ErrNoLocalData
	}

	limit := min(max(q.Limit, localMinLimit), localMaxLimit)
	needle := strings.ToLower(strings.TrimSpace(q.Text))

	results := make([]Result, 0, limit)

	for _, r := range s.rows {
		if len(results) == limit {
			break
		}

		if !localMatch(r, needle) {
			continue
		}

		res := FromReceipt(r)
		res.RelevanceScore = TextScore
		results = append(results, res)
	}

	return results, nil
}

func localMatch(r *receipt.Receipt, needle string) bool {
	for _, field := range []string{
		r.ProductDescription,
		r.BrandName,
		r.ModelNumber,
		r.StoreName,
		r.PurchaseLocation,
		r.ExtractedText,
	} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}

	return false
}

// FromReceipt maps a row onto the common result shape with a zero score.
func FromReceipt(r *receipt.Receipt) Result {
	return Result{
		ID:             r.ID,
		Title:          r.ProductDescription,
		Brand:          r.BrandName,
		Model:          r.ModelNumber,
		PurchaseDate:   r.PurchaseDate,
		Amount:         r.Amount,
		WarrantyPeriod: r.WarrantyPeriod,
	}
}
