// Package dedupengine is the pure scoring and decision core of the
// dedup pipeline: weighted signal combination, threshold-based
// tiering, incremental centroid maintenance, and partition-key
// enumeration. Nothing in this package performs I/O.
package dedupengine

import (
	"time"

	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
)

// Weights are the per-signal coefficients of the confidence formula.
// They need not sum to 1.
type Weights struct {
	Semantic    float64 `mapstructure:"weight_semantic"`
	Subcategory float64 `mapstructure:"weight_subcategory"`
	Category    float64 `mapstructure:"weight_category"`
	Time        float64 `mapstructure:"weight_time"`
}

// DefaultWeights favors the semantic signal heavily; the structured
// signals act as tie-breakers.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.85, Subcategory: 0.10, Category: 0.03, Time: 0.02}
}

// Thresholds gate the three-tier decision.
type Thresholds struct {
	Auto   float64 `mapstructure:"auto_threshold"`
	Review float64 `mapstructure:"review_threshold"`
}

// DefaultThresholds gives a 0.85-0.92 review band.
func DefaultThresholds() Thresholds {
	return Thresholds{Auto: 0.92, Review: 0.85}
}

// Engine bundles the configurable knobs the pure scoring functions need.
type Engine struct {
	Weights      Weights
	Thresholds   Thresholds
	DedupWindow  time.Duration // window W of the time-proximity term
	SearchMonths int
}

// New builds an Engine from the given weights/thresholds/window/months.
func New(w Weights, th Thresholds, window time.Duration, months int) *Engine {
	return &Engine{Weights: w, Thresholds: th, DedupWindow: window, SearchMonths: months}
}

// TimeProximity computes max(0, 1 - |a-b|/W_seconds) for the
// configured window W.
func (e *Engine) TimeProximity(a, b time.Time) float64 {
	return TimeProximity(a, b, e.DedupWindow)
}

// TimeProximity is the free-function form, usable without an Engine
// (e.g. from tests exercising the formula directly).
func TimeProximity(a, b time.Time, window time.Duration) float64 {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	windowSeconds := window.Seconds()
	if windowSeconds <= 0 {
		return 0
	}
	prox := 1 - diff.Seconds()/windowSeconds
	if prox < 0 {
		return 0
	}
	return prox
}

// CandidateSignals is the input to Confidence/Classify for one
// candidate cluster scored against a ticket.
type CandidateSignals struct {
	SemanticScore    float64
	SubcategoryMatch bool
	CategoryMatch    bool
	TimeProximity    float64
}

// Confidence computes the weighted multi-signal score. The result is
// not a calibrated probability and may exceed 1.0; downstream
// thresholds only rely on it being monotonic in each signal.
func (e *Engine) Confidence(s CandidateSignals) float64 {
	conf := e.Weights.Semantic * s.SemanticScore
	if s.SubcategoryMatch {
		conf += e.Weights.Subcategory
	}
	if s.CategoryMatch {
		conf += e.Weights.Category
	}
	conf += e.Weights.Time * s.TimeProximity
	return conf
}

// Classify applies the three-tier decision policy.
func (e *Engine) Classify(confidence float64) (dedupmodel.Decision, string) {
	switch {
	case confidence >= e.Thresholds.Auto:
		return dedupmodel.DecisionAuto, dedupmodel.ReasonAboveAutoThreshold
	case confidence >= e.Thresholds.Review:
		return dedupmodel.DecisionReview, dedupmodel.ReasonReviewBand
	default:
		return dedupmodel.DecisionNewCluster, dedupmodel.ReasonBelowReviewThreshold
	}
}

// UpdateCentroid folds v into a centroid that currently averages n
// member vectors: (n*prior + v) / (n+1). If prior is empty the
// centroid is just v.
func UpdateCentroid(prior []float64, v []float64, n int) []float64 {
	if len(prior) == 0 {
		out := make([]float64, len(v))
		copy(out, v)
		return out
	}
	out := make([]float64, len(prior))
	for i := range prior {
		out[i] = (prior[i]*float64(n) + v[i]) / float64(n+1)
	}
	return out
}

// PartitionKeys returns the months-element sequence of YYYY-MM
// partition keys starting at month(reference) and walking backward,
// newest first.
func PartitionKeys(reference time.Time, months int) []string {
	ref := reference.UTC()
	cursor := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	keys := make([]string, 0, months)
	for i := 0; i < months; i++ {
		keys = append(keys, cursor.Format("2006-01"))
		cursor = cursor.AddDate(0, -1, 0)
	}
	return keys
}

// MonthKey returns the YYYY-MM (UTC) partition key for a timestamp.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
