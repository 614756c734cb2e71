package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordsSearchAndEmbeddingActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SearchAnswered("vector", false, 20*time.Millisecond)
	m.SearchAnswered("text", true, 5*time.Millisecond)
	m.SearchAnswered("text", true, 5*time.Millisecond)
	m.SearchFailed()
	m.TierSkipped("vector", "error")
	m.EmbeddingJob("indexed")
	m.EmbeddingJob("")
	m.EmbeddingDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchOutcomes.WithLabelValues("vector", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.searchOutcomes.WithLabelValues("text", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tierFallthroughs.WithLabelValues("vector", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddingJobs.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddingDropped))

	count, err := testutil.GatherAndCount(reg, "smartreceipts_search_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SearchAnswered("vector", false, time.Second)
		m.SearchFailed()
		m.TierSkipped("text", "empty")
		m.EmbeddingJob("failed")
		m.EmbeddingDropped()
	})

	assert.NotPanics(t, func() {
		New(nil).SearchFailed()
	})
}
