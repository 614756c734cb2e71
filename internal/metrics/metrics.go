package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records search and embedding pipeline activity. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	searchOutcomes   *prometheus.CounterVec
	searchFailures   prometheus.Counter
	searchDuration   *prometheus.HistogramVec
	tierFallthroughs *prometheus.CounterVec
	embeddingJobs    *prometheus.CounterVec
	embeddingDropped prometheus.Counter
}

// New registers the metrics on reg. A nil registerer yields a no-op recorder.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}

	m := &Metrics{
		searchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartreceipts_search_outcomes_total",
			Help: "Searches answered, by producing tier and whether a fallback tier was used.",
		}, []string{"tier", "fallback"}),
		searchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartreceipts_search_failures_total",
			Help: "Searches where every tier failed.",
		}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartreceipts_search_duration_seconds",
			Help:    "Time spent answering a search, by producing tier.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tier"}),
		tierFallthroughs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartreceipts_search_tier_fallthrough_total",
			Help: "Search tiers skipped, by tier and reason.",
		}, []string{"tier", "reason"}),
		embeddingJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartreceipts_embedding_jobs_total",
			Help: "Embedding jobs processed, by outcome.",
		}, []string{"outcome"}),
		embeddingDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartreceipts_embedding_jobs_dropped_total",
			Help: "Embedding jobs rejected because the queue was full or closed.",
		}),
	}

	reg.MustRegister(
		m.searchOutcomes,
		m.searchFailures,
		m.searchDuration,
		m.tierFallthroughs,
		m.embeddingJobs,
		m.embeddingDropped,
	)

	return m
}

func (m *Metrics) SearchAnswered(tier string, fallback bool, took time.Duration) {
	if m == nil || m.searchOutcomes == nil {
		return
	}

	m.searchOutcomes.WithLabelValues(normalizeLabel(tier), strconv.FormatBool(fallback)).Inc()
	m.searchDuration.WithLabelValues(normalizeLabel(tier)).Observe(took.Seconds())
}

func (m *Metrics) SearchFailed() {
	if m == nil || m.searchFailures == nil {
		return
	}

	m.searchFailures.Inc()
}

// TierSkipped counts a tier that errored ("error") or found nothing ("empty").
func (m *Metrics) TierSkipped(tier, reason string) {
	if m == nil || m.tierFallthroughs == nil {
		return
	}

	m.tierFallthroughs.WithLabelValues(normalizeLabel(tier), normalizeLabel(reason)).Inc()
}

// EmbeddingJob counts a finished job; outcome is "indexed", "skipped" or "failed".
func (m *Metrics) EmbeddingJob(outcome string) {
	if m == nil || m.embeddingJobs == nil {
		return
	}

	m.embeddingJobs.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) EmbeddingDropped() {
	if m == nil || m.embeddingDropped == nil {
		return
	}

	m.embeddingDropped.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}

	return v
}
