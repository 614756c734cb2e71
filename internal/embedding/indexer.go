package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

const DefaultBackfillBatch = 10

// Indexer turns receipt text into vectors and stores them on the row.
type Indexer struct {
	embedder Embedder
	store    Store
}

func NewIndexer(embedder Embedder, store Store) *Indexer {
	return &Indexer{embedder: embedder, store: store}
}

// Index embeds the row's content. Rows with no content are skipped without error.
func (ix *Indexer) Index(ctx context.Context, r *receipt.Receipt) error {
	content := Content(r)
	if content == "" {
		return nil
	}

	return ix.IndexContent(ctx, r.UserID, r.ID, content)
}

// IndexContent embeds caller supplied content for a row of the user.
func (ix *Indexer) IndexContent(ctx context.Context, userID, rowID uuid.UUID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	vec, err := ix.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}

	return ix.store.SetEmbedding(ctx, userID, rowID, pgvector.NewVector(vec))
}

type BackfillResult struct {
	Processed int `json:"processed"`
	Indexed   int `json:"indexed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Backfill indexes the user's rows that still lack an embedding, one batch at
// a time. Rows are paged by id so a row that keeps failing is visited once.
func (ix *Indexer) Backfill(ctx context.Context, userID uuid.UUID, batchSize int) (BackfillResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBackfillBatch
	}

	var (
		res   BackfillResult
		after uuid.UUID
	)

	for {
		rows, err := ix.store.ListMissing(ctx, userID, after, batchSize)
		if err != nil {
			return res, fmt.Errorf("listing rows without embedding: %w", err)
		}

		for _, r := range rows {
			res.Processed++
			after = r.ID

			if Content(r) == "" {
				res.Skipped++
				continue
			}

			if err := ix.Index(ctx, r); err != nil {
				res.Failed++
				slog.Warn("failed to backfill embedding", "receipt_id", r.ID, "error", err)

				continue
			}

			res.Indexed++
		}

		if len(rows) < batchSize {
			return res, nil
		}

		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
}
