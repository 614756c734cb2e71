package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrJamesThe3rd/smartreceipts/internal/metrics"
)

// Chain tries strategies in order. A tier that errors, or a tier other than
// the last that finds nothing, hands over to the next one. Only when every
// tier errors does the caller see an error.
type Chain struct {
	strategies []Strategy
	metrics    *metrics.Metrics
}

func NewChain(m *metrics.Metrics, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, metrics: m}
}

func (c *Chain) Search(ctx context.Context, q Query) (*Outcome, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	errs := []error{ErrSearchFailed}

	for i, s := range c.strategies {
		results, err := s.Search(ctx, q)
		if err != nil {
			slog.Debug("search tier failed", "tier", s.Tier(), "error", err)
			c.metrics.TierSkipped(string(s.Tier()), "error")
			errs = append(errs, fmt.Errorf("%s tier: %w", s.Tier(), err))

			continue
		}

		if len(results) == 0 && i < len(c.strategies)-1 {
			slog.Debug("search tier found nothing", "tier", s.Tier())
			c.metrics.TierSkipped(string(s.Tier()), "empty")

			continue
		}

		if results == nil {
			results = []Result{}
		}

		out := &Outcome{Results: results, Tier: s.Tier(), Fallback: i > 0}
		c.metrics.SearchAnswered(string(out.Tier), out.Fallback, time.Since(start))

		return out, nil
	}

	c.metrics.SearchFailed()

	return nil, errors.Join(errs...)
}
