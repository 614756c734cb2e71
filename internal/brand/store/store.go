package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindAlias(ctx context.Context, userID uuid.UUID, raw string) (string, error) {
	query := `
		SELECT brand_name
		FROM brand_aliases
		WHERE user_id = $1 AND $2 ILIKE '%' || raw_pattern || '%'
		ORDER BY LENGTH(raw_pattern) DESC, created_at DESC
		LIMIT 1
	`

	var brandName string

	if err := s.db.GetContext(ctx, &brandName, query, userID, raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("finding brand alias: %w", err)
	}

	return brandName, nil
}

func (s *Store) UpsertAlias(ctx context.Context, userID uuid.UUID, rawPattern, brandName string) error {
	query := `
		INSERT INTO brand_aliases (user_id, raw_pattern, brand_name, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, raw_pattern)
		DO UPDATE SET brand_name = EXCLUDED.brand_name, created_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, userID, rawPattern, brandName); err != nil {
		return fmt.Errorf("saving brand alias: %w", err)
	}

	return nil
}
