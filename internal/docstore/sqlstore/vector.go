package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/gotrs-io/deduptickets/internal/docstore"
)

// VectorTopK pulls the SQL-filtered candidate set for the partition
// into the process and ranks it by cosine similarity in Go. None of
// postgres/mysql/sqlite (the three drivers this store is built over)
// offer native vector search, so this emulates the docstore.Store
// contract in process. It does not scale the way a real vector index
// would; partitions stay month-sized, which keeps the scan bounded.
func (s *Store) VectorTopK(ctx context.Context, container string, q docstore.VectorQuery) ([]docstore.VectorMatch, error) {
	docs, err := s.Query(ctx, container, docstore.Query{PK: q.PK})
	if err != nil {
		return nil, err
	}

	var matches []docstore.VectorMatch
	for _, d := range docs {
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
		fields["pk"] = d.PK
		matches = append(matches, docstore.VectorMatch{
			Fields:     fields,
			Similarity: cosineSimilarity(q.Vector, vec),
		})
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
