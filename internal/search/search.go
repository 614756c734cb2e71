package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuery = errors.New("invalid search query")
	ErrSearchFailed = errors.New("search failed")
	ErrNoLocalData  = errors.New("no receipts loaded for local search")
)

const (
	DefaultLimit     = 10
	MaxLimit         = 50
	DefaultThreshold = 0.3

	// TextScore is the relevance assigned to every substring match.
	TextScore = 0.7
)

type Tier string

const (
	TierVector Tier = "vector"
	TierText   Tier = "text"
	TierLocal  Tier = "local"
)

type Query struct {
	Text      string
	UserID    uuid.UUID
	Limit     int
	Threshold float64
}

// Normalize trims the text and applies default and maximum limits.
func (q Query) Normalize() (Query, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, fmt.Errorf("%w: query text is required", ErrInvalidQuery)
	}

	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}

	switch {
	case q.Threshold <= 0:
		q.Threshold = DefaultThreshold
	case q.Threshold > 1:
		q.Threshold = 1
	}

	return q, nil
}

// Result is the shape every tier produces.
type Result struct {
	ID             uuid.UUID           `json:"id"`
	Title          string              `json:"title"`
	Brand          string              `json:"brand"`
	Model          string              `json:"model,omitempty"`
	PurchaseDate   time.Time           `json:"purchaseDate"`
	Amount         decimal.NullDecimal `json:"amount"`
	WarrantyPeriod string              `json:"warrantyPeriod"`
	RelevanceScore float64             `json:"relevanceScore"`
}

//go:generate mockgen -source=search.go -destination=search_mock.go -package=search
type Strategy interface {
	Tier() Tier
	Search(ctx context.Context, q Query) ([]Result, error)
}

type Store interface {
	// MatchReceipts runs the similarity procedure; RelevanceScore carries the similarity.
	MatchReceipts(ctx context.Context, userID uuid.UUID, vec pgvector.Vector, threshold float64, limit int) ([]Result, error)
	// SearchText returns rows whose description, brand, model or store contain text.
	SearchText(ctx context.Context, userID uuid.UUID, text string, limit int) ([]Result, error)
}

// Outcome is a search answer tagged with the tier that produced it.
type Outcome struct {
	Results  []Result
	Tier     Tier
	Fallback bool
}

// Message describes a fallback for display, empty when the first tier answered.
func (o *Outcome) Message() string {
	if !o.Fallback {
		return ""
	}

	switch o.Tier {
	case TierText:
		return "Smart search is unavailable, showing text matches"
	case TierLocal:
		return "Offline, showing matches from loaded receipts"
	}

	return "Showing fallback results"
}
