// Package metrics holds the prometheus collectors for the extraction pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reqlens"

var (
	global *Metrics
	once   sync.Once
)

// Metrics groups the pipeline collectors.
//
// Collectors:
//   - reqlens_extraction_runs_total{mode}
//   - reqlens_extraction_duration_seconds{mode}
//   - reqlens_cache_lookups_total{result}
//   - reqlens_stale_runs_total
//   - reqlens_parser_fallbacks_total
//   - reqlens_ai_calls_total{operation,result}
type Metrics struct {
	ExtractionRuns     *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	CacheLookups       *prometheus.CounterVec
	StaleRuns          prometheus.Counter
	ParserFallbacks    prometheus.Counter
	AICalls            *prometheus.CounterVec
}

// Default returns the process-wide collectors, registering them with the
// default registry on first use.
func Default() *Metrics {
	once.Do(func() {
		global = newMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return global
}

// New registers a fresh set of collectors on reg. Tests use it with a
// private registry.
func New(reg prometheus.Registerer) *Metrics {
	return newMetrics(promauto.With(reg))
}

func newMetrics(f promauto.Factory) *Metrics {
	return &Metrics{
		ExtractionRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_runs_total",
			Help:      "Completed extraction runs by parser mode.",
		}, []string{"mode"}),

		ExtractionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Extraction run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"mode"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Extraction cache lookups by result (hit, miss, stale).",
		}, []string{"result"}),

		StaleRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_runs_total",
			Help:      "Extraction runs discarded because a newer run superseded them.",
		}),

		ParserFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parser_fallbacks_total",
			Help:      "External parser failures that fell back to the heuristic pipeline.",
		}),

		AICalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_calls_total",
			Help:      "AI provider calls by operation and result.",
		}, []string{"operation", "result"}),
	}
}

// ObserveRun records a finished extraction.
func (m *Metrics) ObserveRun(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionRuns.WithLabelValues(mode).Inc()
	m.ExtractionDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// CacheLookup records a cache hit, miss or stale signature.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// StaleRun records a discarded run.
func (m *Metrics) StaleRun() {
	if m == nil {
		return
	}
	m.StaleRuns.Inc()
}

// ParserFallback records a parser failure.
func (m *Metrics) ParserFallback() {
	if m == nil {
		return
	}
	m.ParserFallbacks.Inc()
}

// AICall records one AI call. result is "ok", "unavailable" or "error".
func (m *Metrics) AICall(operation, result string) {
	if m == nil {
		return
	}
	m.AICalls.WithLabelValues(operation, result).Inc()
}
