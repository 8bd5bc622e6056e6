package dedupengine

import (
	"sort"
	"time"

	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
)

// ScoredCandidate is one candidate cluster after scoring, carrying
// enough to both rank it and, if chosen, record the decision.
type ScoredCandidate struct {
	ClusterID        string // opaque identifier; callers map back to their own candidate struct
	Confidence       float64
	SemanticScore    float64
	Decision         dedupmodel.Decision
	DecisionReason   string
	Signals          dedupmodel.Signals
	ClusterUpdatedAt time.Time

	// Index into the caller's original candidate slice, so callers can
	// recover the full candidate record after sorting.
	Index int
}

// Rank sorts candidates by confidence descending, ties broken by
// semantic score descending, further ties broken by cluster
// updated_at descending. This ordering determines which cluster is
// chosen when multiple are eligible.
func Rank(candidates []ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.SemanticScore != b.SemanticScore {
			return a.SemanticScore > b.SemanticScore
		}
		return a.ClusterUpdatedAt.After(b.ClusterUpdatedAt)
	})
}
