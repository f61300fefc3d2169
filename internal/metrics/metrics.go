// Package metrics defines the Prometheus instrumentation shared by the
// pipeline stages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline counters. All counters are registered on the
// default registry and exposed via the stage's /metrics endpoint.
type Metrics struct {
	ArticlesIngested  prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	FetchErrors       prometheus.Counter

	ArticlesClassified prometheus.Counter
	ModelFallbacks     prometheus.Counter

	ArticlesIndexed  prometheus.Counter
	IndexingFailures prometheus.Counter

	DeadLetters prometheus.Counter
}

// New registers and returns the pipeline metrics.
func New() *Metrics {
	return &Metrics{
		ArticlesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "threatwatch_articles_ingested_total",
			Help: "Articles persisted by the ingestion stage.",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "threatwatch_duplicates_skipped_total",
			Help: "Items skipped due to fingerprint collision.",
		}),
		FetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "threatwatch_fetch_errors_total",
			Help: "Per-source fetch or parse failures.",
		}),
		ArticlesClassified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "threatwatch_articles_classified_total",
			Help: "Articles classified and marked processed.",
		}),
		ModelFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "threatwatch_model_fallbacks_total",
			Help: "Remote model failures that fell back to the rule-based backend.",
		}),
		ArticlesIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "threatwatch_articles_indexed_total",
			Help: "Articles upserted into the search index.",
		}),
		IndexingFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "threatwatch_indexing_failures_total",
			Help: "Search index upserts that returned a non-success response.",
		}),
		DeadLetters: promauto.NewCounter(prometheus.CounterOpts{
			Name: "threatwatch_dead_letters_total",
			Help: "Messages routed to a dead-letter stream.",
		}),
	}
}
