// Package clustering implements the cluster-first dedup pipeline:
// vector candidate search scoped to a rolling partition window,
// multi-signal scoring and ranking via dedupengine,
// capacity-race-tolerant candidate selection, and ETag-retry-guarded
// cluster mutation.
package clustering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gotrs-io/deduptickets/internal/clusterstore"
	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
	"github.com/gotrs-io/deduptickets/internal/dedupengine"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
	"github.com/gotrs-io/deduptickets/internal/metrics"
	"github.com/gotrs-io/deduptickets/internal/ticketstore"
)

// maxETagRetries bounds the centroid/member-list update retry loop.
const maxETagRetries = 3

// Options configures one Service instance.
type Options struct {
	MaxMembers       int
	TopK             int
	FilterByCustomer bool
	OpenStatuses     map[dedupmodel.TicketStatus]struct{}
}

// DefaultOptions caps clusters at 100 members and searches the top 10
// candidates without customer scoping.
func DefaultOptions() Options {
	return Options{
		MaxMembers:       100,
		TopK:             10,
		FilterByCustomer: false,
		OpenStatuses: map[dedupmodel.TicketStatus]struct{}{
			dedupmodel.TicketStatusOpen:    {},
			dedupmodel.TicketStatusPending: {},
		},
	}
}

// Service is the cluster-first dedup orchestrator.
type Service struct {
	clusters *clusterstore.Store
	tickets  *ticketstore.Store
	engine   *dedupengine.Engine
	opts     Options
	metrics  metrics.Recorder
}

// New builds a Service. Metrics observation is a no-op until
// WithMetrics is called.
func New(clusters *clusterstore.Store, tickets *ticketstore.Store, engine *dedupengine.Engine, opts Options) *Service {
	return &Service{clusters: clusters, tickets: tickets, engine: engine, opts: opts, metrics: metrics.Noop()}
}

// WithMetrics swaps in a live Recorder, returning s for chaining at
// construction time.
func (s *Service) WithMetrics(r metrics.Recorder) *Service {
	s.metrics = r
	return s
}

// Result is what FindOrCreateCluster hands back: the cluster the
// ticket ended up in, and the dedup decision recorded against it.
type Result struct {
	Cluster  *dedupmodel.Cluster
	Decision dedupmodel.DedupDecision
}

// FindOrCreateCluster is the pipeline's main entry point: search for
// candidate clusters, score and rank them, and either join the
// highest-ranked eligible one or create a brand new candidate cluster.
//
// The ticket is not persisted here, only its ClusterID field is set in
// memory. The caller (ingest.Coordinator) performs the single ticket
// write after this returns, so a cluster row may briefly reference a
// ticket id that has no ticket row yet.
func (s *Service) FindOrCreateCluster(ctx context.Context, ticket *dedupmodel.Ticket, partitionKey string, dedupWindowDays int) (*Result, error) {
	if len(ticket.ContentVector) == 0 {
		return nil, dedeperrors.New(dedeperrors.InvalidState, "missing_content_vector",
			"ticket must have content_vector set before clustering")
	}

	partitionKeys := dedupengine.PartitionKeys(ticket.CreatedAt, s.engine.SearchMonths)
	minUpdated := ticket.CreatedAt.AddDate(0, 0, -dedupWindowDays)

	searchStart := time.Now()
	candidates, err := s.clusters.FindCandidates(ctx, clusterstore.CandidateQuery{
		CustomerID:       ticket.CustomerID,
		FilterByCustomer: s.opts.FilterByCustomer,
		MinUpdatedAt:     minUpdated,
		QueryVector:      ticket.ContentVector,
		TopK:             s.opts.TopK,
		MaxMembers:       s.opts.MaxMembers,
		PartitionKeys:    partitionKeys,
	})
	s.metrics.ObserveCandidateSearch(time.Since(searchStart).Seconds())
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		result, err := s.createNewCluster(ctx, ticket, partitionKey, dedupmodel.ReasonNoCandidates, 0, nil)
		s.recordResult(result, err)
		return result, err
	}

	ranked := s.scoreAndRank(ticket, candidates)

	var bestNewClusterEntry *scoredEntry
	for i := range ranked {
		entry := ranked[i]
		if entry.decision == dedupmodel.DecisionNewCluster {
			if bestNewClusterEntry == nil {
				bestNewClusterEntry = &entry
			}
			continue
		}

		cluster, err := s.addToExistingCluster(ctx, ticket, entry)
		if err == dedupmodel.ErrClusterFull {
			continue
		}
		if err != nil {
			return nil, err
		}

		result := &Result{
			Cluster: cluster,
			Decision: dedupmodel.DedupDecision{
				Decision:         entry.decision,
				DecisionReason:   entry.decisionReason,
				ConfidenceScore:  entry.confidence,
				MatchedClusterID: cluster.ID,
				SemanticScore:    entry.semanticScore,
				Signals:          entry.signals,
			},
		}
		s.recordResult(result, nil)
		return result, nil
	}

	var result *Result
	if bestNewClusterEntry != nil {
		result, err = s.createNewCluster(ctx, ticket, partitionKey, bestNewClusterEntry.decisionReason, len(candidates), bestNewClusterEntry)
	} else {
		result, err = s.createNewCluster(ctx, ticket, partitionKey, dedupmodel.ReasonBelowReviewThreshold, len(candidates), nil)
	}
	s.recordResult(result, err)
	return result, err
}

// recordResult reports the decision and confidence of a completed
// FindOrCreateCluster call; a failed call (err != nil) isn't counted,
// since no decision was actually reached.
func (s *Service) recordResult(result *Result, err error) {
	if err != nil || result == nil {
		return
	}
	s.metrics.ObserveDecision(string(result.Decision.Decision), result.Decision.DecisionReason)
	s.metrics.ObserveConfidence(result.Decision.ConfidenceScore)
}

type scoredEntry struct {
	candidate      clusterstore.Candidate
	confidence     float64
	decision       dedupmodel.Decision
	decisionReason string
	semanticScore  float64
	signals        dedupmodel.Signals
}

func (s *Service) scoreAndRank(ticket *dedupmodel.Ticket, candidates []clusterstore.Candidate) []scoredEntry {
	scored := make([]dedupengine.ScoredCandidate, len(candidates))
	entries := make([]scoredEntry, len(candidates))

	for i, cand := range candidates {
		subcategoryMatch := ticket.Subcategory != nil && cand.Cluster.Subcategory != nil && *ticket.Subcategory == *cand.Cluster.Subcategory
		categoryMatch := ticket.Category == cand.Cluster.Category
		timeProx := s.engine.TimeProximity(ticket.CreatedAt, cand.Cluster.UpdatedAt)

		confidence := s.engine.Confidence(dedupengine.CandidateSignals{
			SemanticScore:    cand.Similarity,
			SubcategoryMatch: subcategoryMatch,
			CategoryMatch:    categoryMatch,
			TimeProximity:    timeProx,
		})
		decision, reason := s.engine.Classify(confidence)

		entries[i] = scoredEntry{
			candidate:      cand,
			confidence:     confidence,
			decision:       decision,
			decisionReason: reason,
			semanticScore:  cand.Similarity,
			signals: dedupmodel.Signals{
				SubcategoryMatch: subcategoryMatch,
				CategoryMatch:    categoryMatch,
				TimeProximity:    timeProx,
			},
		}
		scored[i] = dedupengine.ScoredCandidate{
			ClusterID:        cand.Cluster.ID.String(),
			Confidence:       confidence,
			SemanticScore:    cand.Similarity,
			ClusterUpdatedAt: cand.Cluster.UpdatedAt,
			Index:            i,
		}
	}

	dedupengine.Rank(scored)

	ranked := make([]scoredEntry, len(scored))
	for i, sc := range scored {
		ranked[i] = entries[sc.Index]
	}
	return ranked
}

// addToExistingCluster adds ticket to the candidate's cluster with an
// ETag-retry loop guarding the centroid/member-list/open-count update,
// promoting candidate→pending on the second member. Returns
// dedupmodel.ErrClusterFull if the cluster filled between the
// candidate search and this call (a race the caller retries past by
// moving to the next-ranked candidate).
func (s *Service) addToExistingCluster(ctx context.Context, ticket *dedupmodel.Ticket, entry scoredEntry) (*dedupmodel.Cluster, error) {
	clusterID := entry.candidate.Cluster.ID
	clusterPK := entry.candidate.Cluster.PK

	cluster, err := s.clusters.Get(ctx, clusterPK, clusterID.String())
	if err != nil {
		return nil, err
	}

	isOpen := ticket.IsOpen(s.opts.OpenStatuses)

	var lastErr error
	for attempt := 0; attempt < maxETagRetries; attempt++ {
		n := cluster.TicketCount
		confidence := entry.confidence
		if addErr := cluster.AddMember(dedupmodel.ClusterMember{
			TicketID:        ticket.ID,
			TicketNumber:    ticket.TicketNumber,
			Summary:         ticket.Summary,
			Category:        ticket.Category,
			Subcategory:     ticket.Subcategory,
			CreatedAt:       ticket.CreatedAt,
			ConfidenceScore: &confidence,
			AddedAt:         ticket.CreatedAt,
		}, s.opts.MaxMembers, ticket.CreatedAt); addErr != nil {
			return nil, addErr
		}

		if len(cluster.CentroidVector) > 0 {
			cluster.CentroidVector = dedupengine.UpdateCentroid(cluster.CentroidVector, ticket.ContentVector, n)
		} else {
			cluster.CentroidVector = ticket.ContentVector
		}

		if isOpen {
			cluster.OpenCount++
		}
		if cluster.Status == dedupmodel.ClusterCandidate {
			cluster.Status = dedupmodel.ClusterPending
		}

		err := s.clusters.Replace(ctx, cluster)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if dedeperrors.KindOf(err) != dedeperrors.Conflict || attempt == maxETagRetries-1 {
			return nil, err
		}

		cluster, err = s.clusters.Get(ctx, clusterPK, clusterID.String())
		if err != nil {
			return nil, err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	ticket.ClusterID = cluster.ID
	return cluster, nil
}

func (s *Service) createNewCluster(ctx context.Context, ticket *dedupmodel.Ticket, partitionKey, decisionReason string, candidateCount int, best *scoredEntry) (*Result, error) {
	isOpen := ticket.IsOpen(s.opts.OpenStatuses)
	openCount := 0
	if isOpen {
		openCount = 1
	}

	confidence := entryField(best, func(e scoredEntry) float64 { return e.confidence })
	semanticScore := entryField(best, func(e scoredEntry) float64 { return e.semanticScore })
	var signals dedupmodel.Signals
	if best != nil {
		signals = best.signals
	}

	cluster := &dedupmodel.Cluster{
		ID:     uuid.New(),
		PK:     partitionKey,
		Status: dedupmodel.ClusterCandidate,
		Members: []dedupmodel.ClusterMember{{
			TicketID:     ticket.ID,
			TicketNumber: ticket.TicketNumber,
			Summary:      ticket.Summary,
			Category:     ticket.Category,
			Subcategory:  ticket.Subcategory,
			CreatedAt:    ticket.CreatedAt,
			AddedAt:      ticket.CreatedAt,
		}},
		TicketCount:             1,
		OpenCount:               openCount,
		CentroidVector:          ticket.ContentVector,
		CustomerID:              ticket.CustomerID,
		Category:                ticket.Category,
		Subcategory:             ticket.Subcategory,
		RepresentativeTicketID:  ticket.ID,
		CreatedAt:               ticket.CreatedAt,
		UpdatedAt:               ticket.CreatedAt,
	}

	if err := s.clusters.Create(ctx, cluster); err != nil {
		return nil, err
	}

	ticket.ClusterID = cluster.ID

	return &Result{
		Cluster: cluster,
		Decision: dedupmodel.DedupDecision{
			Decision:         dedupmodel.DecisionNewCluster,
			DecisionReason:   decisionReason,
			ConfidenceScore:  confidence,
			MatchedClusterID: cluster.ID,
			SemanticScore:    semanticScore,
			Signals:          signals,
		},
	}, nil
}

func entryField(e *scoredEntry, f func(scoredEntry) float64) float64 {
	if e == nil {
		return 0
	}
	return f(*e)
}

// DismissCluster marks a cluster as not-duplicates.
func (s *Service) DismissCluster(ctx context.Context, clusterID uuid.UUID, partitionKey, dismissedBy string, reason *string) (*dedupmodel.Cluster, error) {
	cluster, err := s.clusters.Get(ctx, partitionKey, clusterID.String())
	if err != nil {
		return nil, err
	}
	if cluster.Status == dedupmodel.ClusterDismissed {
		return nil, dedeperrors.New(dedeperrors.InvalidState, "cluster_already_dismissed",
			fmt.Sprintf("cluster %s is already dismissed", clusterID))
	}

	cluster.Status = dedupmodel.ClusterDismissed
	cluster.DismissedBy = &dismissedBy
	cluster.DismissalReason = reason
	cluster.UpdatedAt = time.Now().UTC()

	if err := s.clusters.Replace(ctx, cluster); err != nil {
		return nil, err
	}
	return cluster, nil
}

// RemoveMember removes a single ticket from a cluster, demoting the
// cluster back to candidate status if it drops to one member.
func (s *Service) RemoveMember(ctx context.Context, clusterID, ticketID uuid.UUID, clusterPK, ticketPK string) (*dedupmodel.Cluster, error) {
	cluster, err := s.clusters.Get(ctx, clusterPK, clusterID.String())
	if err != nil {
		return nil, err
	}
	if !cluster.HasMember(ticketID) {
		return nil, dedeperrors.New(dedeperrors.InvalidState, "ticket_not_in_cluster",
			fmt.Sprintf("ticket %s is not in cluster %s", ticketID, clusterID))
	}
	if cluster.Status != dedupmodel.ClusterPending && cluster.Status != dedupmodel.ClusterCandidate {
		return nil, dedeperrors.New(dedeperrors.InvalidState, "cluster_not_modifiable",
			fmt.Sprintf("cannot modify cluster with status %s", cluster.Status))
	}

	cluster.RemoveMember(ticketID, time.Now().UTC())
	if cluster.TicketCount == 1 {
		cluster.Status = dedupmodel.ClusterCandidate
	}

	if err := s.clusters.Replace(ctx, cluster); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.Get(ctx, ticketPK, ticketID.String())
	if err != nil {
		return nil, err
	}
	ticket.ClusterID = uuid.Nil
	if err := s.tickets.Update(ctx, ticketPK, ticket); err != nil {
		return nil, err
	}

	return cluster, nil
}
