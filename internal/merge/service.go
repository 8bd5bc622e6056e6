// Package merge implements the reversible merge protocol: merge of a
// pending cluster's secondary tickets into a primary, full pre-merge
// snapshots, a bounded revert window, and subsequent-merge /
// ticket-modified conflict detection on revert.
package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gotrs-io/deduptickets/internal/clusterstore"
	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
	"github.com/gotrs-io/deduptickets/internal/mergestore"
	"github.com/gotrs-io/deduptickets/internal/metrics"
	"github.com/gotrs-io/deduptickets/internal/ticketstore"
)

// Service orchestrates merge creation and reverts.
type Service struct {
	tickets      *ticketstore.Store
	clusters     *clusterstore.Store
	merges       *mergestore.Store
	revertWindow time.Duration
	openStatuses map[dedupmodel.TicketStatus]struct{}
	now          func() time.Time
	metrics      metrics.Recorder
}

// Options configures a Service.
type Options struct {
	RevertWindow time.Duration
	OpenStatuses map[dedupmodel.TicketStatus]struct{}
}

// DefaultOptions allows reverting for 24 hours after a merge.
func DefaultOptions() Options {
	return Options{
		RevertWindow: 24 * time.Hour,
		OpenStatuses: map[dedupmodel.TicketStatus]struct{}{
			dedupmodel.TicketStatusOpen:    {},
			dedupmodel.TicketStatusPending: {},
		},
	}
}

// New builds a merge Service. Metrics observation is a no-op until
// WithMetrics is called.
func New(tickets *ticketstore.Store, clusters *clusterstore.Store, merges *mergestore.Store, opts Options) *Service {
	return &Service{
		tickets:      tickets,
		clusters:     clusters,
		merges:       merges,
		revertWindow: opts.RevertWindow,
		openStatuses: opts.OpenStatuses,
		now:          time.Now,
		metrics:      metrics.Noop(),
	}
}

// WithMetrics swaps in a live Recorder, returning s for chaining at
// construction time.
func (s *Service) WithMetrics(r metrics.Recorder) *Service {
	s.metrics = r
	return s
}

// MergeCluster merges every ticket in a pending cluster except
// canonicalTicketID into canonicalTicketID, capturing a full pre-merge
// snapshot of each secondary so the merge can later be reverted.
func (s *Service) MergeCluster(ctx context.Context, clusterID, canonicalTicketID uuid.UUID, partitionKey, mergedBy string) (op *dedupmodel.MergeOperation, err error) {
	defer func() {
		if err != nil {
			s.metrics.ObserveMerge("error")
		} else {
			s.metrics.ObserveMerge("success")
		}
	}()

	cluster, err := s.clusters.Get(ctx, partitionKey, clusterID.String())
	if err != nil {
		return nil, err
	}
	if cluster.Status == dedupmodel.ClusterCandidate {
		return nil, dedeperrors.New(dedeperrors.InvalidState, "cluster_single_member",
			"cannot merge a candidate (single-member) cluster")
	}
	if cluster.Status != dedupmodel.ClusterPending {
		return nil, dedeperrors.New(dedeperrors.InvalidState, "cluster_not_pending",
			fmt.Sprintf("cluster status is %s, expected pending", cluster.Status))
	}
	if !cluster.HasMember(canonicalTicketID) {
		return nil, dedeperrors.New(dedeperrors.InvalidState, "canonical_ticket_not_in_cluster",
			"canonical ticket is not in the cluster")
	}

	var secondaryIDs []uuid.UUID
	for _, id := range cluster.TicketIDs() {
		if id != canonicalTicketID {
			secondaryIDs = append(secondaryIDs, id)
		}
	}
	if len(secondaryIDs) == 0 {
		return nil, dedeperrors.New(dedeperrors.InvalidState, "no_tickets_to_merge", "no tickets to merge")
	}

	secondaries := make([]*dedupmodel.Ticket, 0, len(secondaryIDs))
	snapshots := make([]dedupmodel.TicketSnapshot, 0, len(secondaryIDs))
	for _, id := range secondaryIDs {
		tk, err := s.tickets.Get(ctx, partitionKey, id.String())
		if err != nil {
			return nil, err
		}
		secondaries = append(secondaries, tk)
		snapshots = append(snapshots, snapshot(tk))
	}

	now := s.now().UTC()
	op = &dedupmodel.MergeOperation{
		ID:                 uuid.New(),
		PK:                 partitionKey,
		ClusterID:          clusterID,
		PrimaryTicketID:    canonicalTicketID,
		SecondaryTicketIDs: secondaryIDs,
		MergeBehavior:      dedupmodel.MergeKeepLatest,
		PerformedBy:        mergedBy,
		PerformedAt:        now,
		RevertDeadline:     now.Add(s.revertWindow),
		Status:             dedupmodel.MergeStatusCompleted,
		OriginalStates:     snapshots,
	}
	if err := s.merges.Create(ctx, partitionKey, op); err != nil {
		return nil, err
	}

	cluster.Status = dedupmodel.ClusterMerged
	cluster.UpdatedAt = now
	openCountDelta := 0
	for _, tk := range secondaries {
		if _, open := s.openStatuses[tk.Status]; open {
			openCountDelta--
		}
		tk.MergedIntoID = &canonicalTicketID
		tk.UpdatedAt = now
		if err := s.tickets.Update(ctx, partitionKey, tk); err != nil {
			return nil, err
		}
	}
	cluster.OpenCount = clampNonNegative(cluster.OpenCount + openCountDelta)
	if err := s.clusters.Replace(ctx, cluster); err != nil {
		return nil, err
	}

	return op, nil
}

func snapshot(tk *dedupmodel.Ticket) dedupmodel.TicketSnapshot {
	var clusterID *uuid.UUID
	if tk.ClusterID != uuid.Nil {
		id := tk.ClusterID
		clusterID = &id
	}
	return dedupmodel.TicketSnapshot{
		TicketID:     tk.ID,
		ClusterID:    clusterID,
		MergedIntoID: tk.MergedIntoID,
		UpdatedAt:    tk.UpdatedAt,
	}
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// RevertMerge restores a merge's secondary tickets to their pre-merge
// state and returns the cluster to pending status. If conflicts are
// detected (a subsequent merge touched the same cluster, or a
// secondary ticket was modified after the merge) and force is false,
// it returns a *dedeperrors.Error of Kind MergeConflictKind carrying
// the conflict list; callers retry with force=true to override.
func (s *Service) RevertMerge(ctx context.Context, mergeID uuid.UUID, partitionKey, revertedBy string, reason *string, force bool) (op *dedupmodel.MergeOperation, err error) {
	defer func() {
		switch {
		case err == nil:
			s.metrics.ObserveRevert("success")
		case dedeperrors.KindOf(err) == dedeperrors.MergeConflictKind:
			s.metrics.ObserveRevert("conflict")
		default:
			s.metrics.ObserveRevert("error")
		}
	}()

	op, err = s.merges.Get(ctx, partitionKey, mergeID.String())
	if err != nil {
		return nil, err
	}
	if op.Status == dedupmodel.MergeStatusReverted {
		return nil, dedeperrors.New(dedeperrors.InvalidState, "already_reverted", "merge is already reverted")
	}

	now := s.now().UTC()
	if now.After(op.RevertDeadline) {
		return nil, dedeperrors.New(dedeperrors.DeadlineExceeded, "revert_window_expired", "revert window has expired")
	}

	conflicts, err := s.checkRevertConflicts(ctx, op, partitionKey)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 && !force {
		return nil, dedeperrors.New(dedeperrors.MergeConflictKind, "merge_conflict",
			"conflicts detected with subsequent merges or ticket modifications").WithConflicts(conflicts)
	}

	openCountDelta := 0
	for _, id := range op.SecondaryTicketIDs {
		tk, err := s.tickets.Get(ctx, partitionKey, id.String())
		if err != nil {
			return nil, err
		}
		snap := op.Snapshot(id)
		tk.MergedIntoID = nil
		if snap != nil {
			if snap.ClusterID != nil {
				tk.ClusterID = *snap.ClusterID
			} else {
				tk.ClusterID = uuid.Nil
			}
		}
		tk.UpdatedAt = now
		if err := s.tickets.Update(ctx, partitionKey, tk); err != nil {
			return nil, err
		}
		if _, open := s.openStatuses[tk.Status]; open {
			openCountDelta++
		}
	}

	op.Status = dedupmodel.MergeStatusReverted
	op.RevertedBy = &revertedBy
	op.RevertedAt = &now
	op.RevertReason = reason
	if err := s.merges.Replace(ctx, op); err != nil {
		return nil, err
	}

	cluster, err := s.clusters.Get(ctx, partitionKey, op.ClusterID.String())
	if err != nil {
		return nil, err
	}
	cluster.Status = dedupmodel.ClusterPending
	cluster.OpenCount += openCountDelta
	cluster.UpdatedAt = now
	if err := s.clusters.Replace(ctx, cluster); err != nil {
		return nil, err
	}

	return op, nil
}

func (s *Service) checkRevertConflicts(ctx context.Context, op *dedupmodel.MergeOperation, partitionKey string) ([]dedeperrors.ConflictEntry, error) {
	var conflicts []dedeperrors.ConflictEntry

	history, err := s.merges.ListByPrimary(ctx, partitionKey, op.PrimaryTicketID)
	if err != nil {
		return nil, err
	}
	for _, other := range history {
		if other.ID == op.ID || other.Status != dedupmodel.MergeStatusCompleted {
			continue
		}
		if other.PerformedAt.After(op.PerformedAt) {
			conflicts = append(conflicts, dedeperrors.ConflictEntry{
				Type:    dedeperrors.ConflictSubsequentMerge,
				MergeID: other.ID,
				Detail:  fmt.Sprintf("merge %s performed at %s conflicts with revert of %s", other.ID, other.PerformedAt, op.ID),
			})
		}
	}

	for _, id := range op.SecondaryTicketIDs {
		tk, err := s.tickets.Get(ctx, partitionKey, id.String())
		if err != nil {
			return nil, err
		}
		snap := op.Snapshot(id)
		if snap == nil {
			continue
		}
		if tk.UpdatedAt.After(snap.UpdatedAt) && tk.UpdatedAt.After(op.PerformedAt) {
			conflicts = append(conflicts, dedeperrors.ConflictEntry{
				Type:     dedeperrors.ConflictTicketModified,
				TicketID: id,
				Detail:   fmt.Sprintf("ticket %s modified at %s after the merge", id, tk.UpdatedAt),
			})
		}
	}

	return conflicts, nil
}

// CheckRevertEligible reports whether mergeID can be reverted right
// now, and any conflicts that a non-forced revert would hit.
func (s *Service) CheckRevertEligible(ctx context.Context, mergeID uuid.UUID, partitionKey string) (eligible bool, conflicts []dedeperrors.ConflictEntry, err error) {
	op, err := s.merges.Get(ctx, partitionKey, mergeID.String())
	if err != nil {
		return false, nil, err
	}
	if op.Status == dedupmodel.MergeStatusReverted {
		return false, nil, nil
	}
	if s.now().UTC().After(op.RevertDeadline) {
		return false, nil, nil
	}
	conflicts, err = s.checkRevertConflicts(ctx, op, partitionKey)
	if err != nil {
		return false, nil, err
	}
	return true, conflicts, nil
}
