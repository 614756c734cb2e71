package search

import (
	"context"

	"github.com/MrJamesThe3rd/smartreceipts/internal/embedding"
	"github.com/MrJamesThe3rd/smartreceipts/internal/metrics"
)

// Service is the server side search: vector similarity, then text matching.
type Service struct {
	chain *Chain
}

func NewService(embedder embedding.Embedder, store Store, m *metrics.Metrics) *Service {
	return &Service{
		chain: NewChain(m,
			NewVectorStrategy(embedder, store),
			NewTextStrategy(store),
		),
	}
}

func (s *Service) Search(ctx context.Context, q Query) (*Outcome, error) {
	return s.chain.Search(ctx, q)
}
