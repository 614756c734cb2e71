package brand

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidAlias = errors.New("raw pattern and brand name are required")

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=brand
type Repository interface {
	// FindAlias returns the brand of the longest learned pattern contained in raw,
	// or an empty string when none matches.
	FindAlias(ctx context.Context, userID uuid.UUID, raw string) (string, error)
	UpsertAlias(ctx context.Context, userID uuid.UUID, rawPattern, brandName string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest returns the learned brand for raw, or an empty string.
func (s *Service) Suggest(ctx context.Context, userID uuid.UUID, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	return s.repo.FindAlias(ctx, userID, raw)
}

// Normalize maps raw onto its learned brand, keeping raw when nothing was learned.
func (s *Service) Normalize(ctx context.Context, userID uuid.UUID, raw string) (string, error) {
	suggested, err := s.Suggest(ctx, userID, raw)
	if err != nil {
		return "", err
	}

	if suggested == "" {
		return strings.TrimSpace(raw), nil
	}

	return suggested, nil
}

// Learn remembers that text containing rawPattern belongs to brandName.
// Learning the same pattern again replaces its brand.
func (s *Service) Learn(ctx context.Context, userID uuid.UUID, rawPattern, brandName string) error {
	rawPattern = strings.TrimSpace(rawPattern)
	brandName = strings.TrimSpace(brandName)

	if rawPattern == "" || brandName == "" {
		return ErrInvalidAlias
	}

	return s.repo.UpsertAlias(ctx, userID, rawPattern, brandName)
}
