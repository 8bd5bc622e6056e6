// Package clusterstore is the typed view over docstore.Store for
// Cluster documents: candidate search via VectorTopK, and ETag-guarded
// conditional replace so centroid/member-list updates stay race-safe.
package clusterstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
	"github.com/gotrs-io/deduptickets/internal/docstore"
)

const container = "clusters"

// Store is a typed wrapper around a docstore.Store scoped to clusters.
type Store struct {
	docs docstore.Store
}

// New builds a clusterstore.Store over the given document store.
func New(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

// Candidate is one scored candidate cluster returned by FindCandidates.
type Candidate struct {
	Cluster    dedupmodel.Cluster
	ETag       docstore.ETag
	Similarity float64
}

// CandidateQuery parametrizes FindCandidates.
type CandidateQuery struct {
	CustomerID       string
	FilterByCustomer bool
	MinUpdatedAt     time.Time
	QueryVector      []float64
	TopK             int
	MaxMembers       int
	PartitionKeys    []string
}

// FindCandidates fans the vector candidate search out across the given
// partition keys concurrently, then merges the per-partition results
// and re-ranks the combined set by similarity. Matches with equal
// similarity keep the order of q.PartitionKeys, so with keys listed
// newest first the newer partition's match comes first.
func (s *Store) FindCandidates(ctx context.Context, q CandidateQuery) ([]Candidate, error) {
	minUpdated := q.MinUpdatedAt.UTC().Format(time.RFC3339)

	perPartition := make([][]Candidate, len(q.PartitionKeys))
	g, gctx := errgroup.WithContext(ctx)
	for i, pk := range q.PartitionKeys {
		g.Go(func() error {
			vq := docstore.VectorQuery{
				PK:              pk,
				TopK:            q.TopK,
				Vector:          q.QueryVector,
				MinUpdatedAt:    &minUpdated,
				MaxIntFilter:    map[string]int{"ticketCount": q.MaxMembers},
				RequirePositive: []string{"openCount"},
			}
			if q.FilterByCustomer {
				vq.EqualityFilter = map[string]string{"customerId": q.CustomerID}
			}

			matches, err := s.docs.VectorTopK(gctx, container, vq)
			if err != nil {
				return dedeperrors.Wrap(dedeperrors.StoreError, "cluster_vector_search_failed", err)
			}
			found := make([]Candidate, 0, len(matches))
			for _, m := range matches {
				c, etag, err := fieldsToCluster(m.Fields, pk)
				if err != nil {
					return err
				}
				found = append(found, Candidate{Cluster: c, ETag: etag, Similarity: m.Similarity})
			}
			perPartition[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Candidate
	for _, found := range perPartition {
		all = append(all, found...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Similarity > all[j].Similarity })
	if q.TopK > 0 && len(all) > q.TopK {
		all = all[:q.TopK]
	}
	return all, nil
}

// fieldsToCluster reconstructs just enough of a Cluster from the
// projected VectorTopK fields to drive scoring; callers that need the
// full document (e.g. to mutate and Replace) call Get.
func fieldsToCluster(fields map[string]any, pk string) (dedupmodel.Cluster, docstore.ETag, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return dedupmodel.Cluster{}, "", dedeperrors.Wrap(dedeperrors.StoreError, "cluster_project_failed", err)
	}
	var c dedupmodel.Cluster
	if err := json.Unmarshal(raw, &c); err != nil {
		return dedupmodel.Cluster{}, "", dedeperrors.Wrap(dedeperrors.StoreError, "cluster_unmarshal_failed", err)
	}
	c.PK = pk
	etag, _ := fields["etag"].(string)
	return c, docstore.ETag(etag), nil
}

// Create persists a brand new (single-member, candidate-status) cluster.
func (s *Store) Create(ctx context.Context, c *dedupmodel.Cluster) error {
	body, err := marshalWithETag(c, "")
	if err != nil {
		return err
	}
	doc := docstore.Document{Container: container, PK: c.PK, ID: c.ID.String(), Body: body}
	created, err := s.docs.Create(ctx, doc, "")
	if err != nil {
		return dedeperrors.Wrap(dedeperrors.StoreError, "cluster_create_failed", err)
	}
	c.ETag = string(created.ETag)
	return nil
}

// Get reads a single cluster by id within its partition.
func (s *Store) Get(ctx context.Context, pk, id string) (*dedupmodel.Cluster, error) {
	doc, err := s.docs.PointRead(ctx, container, pk, id)
	if err != nil {
		if err == docstore.ErrNotFound {
			return nil, dedeperrors.New(dedeperrors.NotFound, "cluster_not_found",
				fmt.Sprintf("cluster %q not found in partition %q", id, pk))
		}
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "cluster_read_failed", err)
	}
	var c dedupmodel.Cluster
	if err := json.Unmarshal(doc.Body, &c); err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "cluster_unmarshal_failed", err)
	}
	c.ETag = string(doc.ETag)
	return &c, nil
}

// Replace performs the ETag-guarded conditional update wrapped around
// every cluster mutation (member add/remove, centroid update, status
// transition, dismissal). On precondition failure it
// returns a *dedeperrors.Error with Kind Conflict so callers can
// re-read and retry per their own bounded-retry policy.
func (s *Store) Replace(ctx context.Context, c *dedupmodel.Cluster) error {
	body, err := marshalWithETag(c, c.ETag)
	if err != nil {
		return err
	}
	doc := docstore.Document{Container: container, PK: c.PK, ID: c.ID.String(), Body: body}
	replaced, err := s.docs.Replace(ctx, doc, docstore.ETag(c.ETag))
	if err != nil {
		if err == docstore.ErrPreconditionFailed {
			return dedeperrors.New(dedeperrors.Conflict, "cluster_etag_conflict",
				"cluster was modified concurrently")
		}
		if err == docstore.ErrNotFound {
			return dedeperrors.New(dedeperrors.NotFound, "cluster_not_found", "cluster no longer exists")
		}
		return dedeperrors.Wrap(dedeperrors.StoreError, "cluster_replace_failed", err)
	}
	c.ETag = string(replaced.ETag)
	return nil
}

// marshalWithETag serializes c and stamps an "etag" field into the
// JSON body so VectorTopK's field projection (which only sees the
// stored body, not docstore.Document.ETag) can still recover it.
func marshalWithETag(c *dedupmodel.Cluster, etag string) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "cluster_marshal_failed", err)
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "cluster_marshal_failed", err)
	}
	m["etag"] = etag
	out, err := json.Marshal(m)
	if err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "cluster_marshal_failed", err)
	}
	return out, nil
}

// ListByStatus returns every cluster with the given status in a partition.
func (s *Store) ListByStatus(ctx context.Context, pk string, status dedupmodel.ClusterStatus) ([]*dedupmodel.Cluster, error) {
	docs, err := s.docs.Query(ctx, container, docstore.Query{PK: pk, Params: map[string]any{"eq_status": string(status)}})
	if err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "cluster_query_failed", err)
	}
	out := make([]*dedupmodel.Cluster, 0, len(docs))
	for _, d := range docs {
		var c dedupmodel.Cluster
		if err := json.Unmarshal(d.Body, &c); err != nil {
			return nil, dedeperrors.Wrap(dedeperrors.StoreError, "cluster_unmarshal_failed", err)
		}
		c.ETag = string(d.ETag)
		out = append(out, &c)
	}
	return out, nil
}
