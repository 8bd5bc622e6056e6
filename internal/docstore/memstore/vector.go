package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/gotrs-io/deduptickets/internal/docstore"
)

// VectorTopK ranks every document in the container/partition by
// cosine similarity to q.Vector, applies q's equality/range/positivity
// filters, and returns the top K. This is the in-memory analogue of a
// database-side ORDER BY vector-distance query.
func (s *Store) VectorTopK(ctx context.Context, container string, q docstore.VectorQuery) ([]docstore.VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []docstore.VectorMatch
	for k, d := range s.docs {
		if k.container != container || k.pk != q.PK {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(d.Body, &fields); err != nil {
			return nil, err
		}
		if !passesFilters(fields, q) {
			continue
		}
		vec, ok := floatSlice(fields["centroidVector"])
		if !ok || len(vec) == 0 {
			continue
		}
		sim := cosineSimilarity(q.Vector, vec)
		fields["pk"] = k.pk
		matches = append(matches, docstore.VectorMatch{Fields: fields, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if q.TopK > 0 && len(matches) > q.TopK {
		matches = matches[:q.TopK]
	}
	return matches, nil
}

func passesFilters(fields map[string]any, q docstore.VectorQuery) bool {
	for field, want := range q.EqualityFilter {
		if fmt.Sprintf("%v", fields[field]) != want {
			return false
		}
	}
	if q.MinUpdatedAt != nil {
		updatedAt, _ := fields["updatedAt"].(string)
		if updatedAt < *q.MinUpdatedAt {
			return false
		}
	}
	for field, max := range q.MaxIntFilter {
		n, ok := intValue(fields[field])
		if !ok || n >= max {
			return false
		}
	}
	for _, field := range q.RequirePositive {
		n, ok := intValue(fields[field])
		if !ok || n <= 0 {
			return false
		}
	}
	return true
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

func floatSlice(v any) ([]float64, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(raw))
	for i, x := range raw {
		f, ok := x.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// cosineSimilarity returns a value in [-1,1]; docstore.VectorMatch
// carries similarity (not distance) so that higher is always better
// across this codebase.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
