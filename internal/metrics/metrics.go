// Package metrics is the dedup pipeline's prometheus client_golang
// instrumentation: decision counts, confidence distribution, candidate
// search latency, and merge/revert outcome counts. cmd/server wires
// Handler() onto /metrics and passes Collectors into clustering.Service
// and merge.Service as an optional Recorder.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the subset of Collectors that clustering.Service and
// merge.Service depend on, so callers can pass a no-op or a test
// double without pulling in prometheus.
type Recorder interface {
	ObserveDecision(decision, reason string)
	ObserveConfidence(score float64)
	ObserveCandidateSearch(d float64)
	ObserveMerge(result string)
	ObserveRevert(result string)
	ObserveEmbed(d float64, err error)
}

// Collectors holds every metric the dedup pipeline emits, registered
// against a dedicated registry so cmd/server controls exactly what
// /metrics serves.
type Collectors struct {
	registry *prometheus.Registry

	decisionsTotal          *prometheus.CounterVec
	confidenceScore         prometheus.Histogram
	candidateSearchDuration prometheus.Histogram
	mergeOperationsTotal    *prometheus.CounterVec
	revertOperationsTotal   *prometheus.CounterVec
	embedderDuration        prometheus.Histogram
	embedderErrorsTotal     prometheus.Counter
}

// New builds a Collectors with its own registry plus the Go/process
// collectors promauto would otherwise register globally.
func New() *Collectors {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collectors{
		registry: registry,
		decisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_decisions_total",
			Help: "Total dedup decisions, partitioned by decision kind and reason.",
		}, []string{"decision", "reason"}),
		confidenceScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dedup_confidence_score",
			Help:    "Confidence score assigned to the best-ranked candidate cluster.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		candidateSearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dedup_candidate_search_duration_seconds",
			Help:    "Latency of the vector candidate search against the cluster store.",
			Buckets: prometheus.DefBuckets,
		}),
		mergeOperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_merge_operations_total",
			Help: "Total merge operations, partitioned by result.",
		}, []string{"result"}),
		revertOperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_revert_operations_total",
			Help: "Total revert operations, partitioned by result.",
		}, []string{"result"}),
		embedderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dedup_embedder_duration_seconds",
			Help:    "Latency of embedding calls made during ticket ingestion.",
			Buckets: prometheus.DefBuckets,
		}),
		embedderErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dedup_embedder_errors_total",
			Help: "Total embedder call failures.",
		}),
	}
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collectors) ObserveDecision(decision, reason string) {
	c.decisionsTotal.WithLabelValues(decision, reason).Inc()
}

func (c *Collectors) ObserveConfidence(score float64) { c.confidenceScore.Observe(score) }

func (c *Collectors) ObserveCandidateSearch(d float64) { c.candidateSearchDuration.Observe(d) }

func (c *Collectors) ObserveMerge(result string) { c.mergeOperationsTotal.WithLabelValues(result).Inc() }

func (c *Collectors) ObserveRevert(result string) {
	c.revertOperationsTotal.WithLabelValues(result).Inc()
}

func (c *Collectors) ObserveEmbed(d float64, err error) {
	c.embedderDuration.Observe(d)
	if err != nil {
		c.embedderErrorsTotal.Inc()
	}
}

// noop satisfies Recorder for services built without metrics wired in
// (unit tests, or a deployment that doesn't care to scrape this service).
type noop struct{}

func (noop) ObserveDecision(string, string) {}
func (noop) ObserveConfidence(float64)      {}
func (noop) ObserveCandidateSearch(float64) {}
func (noop) ObserveMerge(string)            {}
func (noop) ObserveRevert(string)           {}
func (noop) ObserveEmbed(float64, error)    {}

// Noop returns a Recorder that discards every observation.
func Noop() Recorder { return noop{} }
