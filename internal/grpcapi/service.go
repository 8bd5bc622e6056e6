// Package grpcapi is the gRPC transport for the five exposed core
// operations, mirroring internal/api/dedupapi's REST surface: pure
// request/response translation, no dedup or merge logic of its own.
package grpcapi

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gotrs-io/deduptickets/internal/clustering"
	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
	"github.com/gotrs-io/deduptickets/internal/ingest"
	"github.com/gotrs-io/deduptickets/internal/merge"
)

// Service implements DedupServiceServer over the core packages.
type Service struct {
	UnimplementedDedupServiceServer

	ingest     *ingest.Coordinator
	clustering *clustering.Service
	merge      *merge.Service
}

// New builds a Service.
func New(ingestCoordinator *ingest.Coordinator, clusteringSvc *clustering.Service, mergeSvc *merge.Service) *Service {
	return &Service{ingest: ingestCoordinator, clustering: clusteringSvc, merge: mergeSvc}
}

// codeFor is this transport's own Kind→grpc codes.Code table,
// independent of dedupapi's HTTP status table.
func codeFor(kind dedeperrors.Kind) codes.Code {
	switch kind {
	case dedeperrors.NotFound:
		return codes.NotFound
	case dedeperrors.Conflict:
		return codes.AlreadyExists
	case dedeperrors.InvalidState:
		return codes.FailedPrecondition
	case dedeperrors.DeadlineExceeded:
		return codes.DeadlineExceeded
	case dedeperrors.MergeConflictKind:
		return codes.Aborted
	case dedeperrors.Unavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	derr, ok := err.(*dedeperrors.Error)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	return status.Error(codeFor(derr.Kind), derr.Error())
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) IngestTicket(ctx context.Context, req *IngestTicketRequest) (*IngestTicketResponse, error) {
	createdAt := time.Now().UTC()
	if req.CreatedAtSec > 0 {
		createdAt = time.Unix(req.CreatedAtSec, 0).UTC()
	}
	var occurredAt *time.Time
	if req.OccurredAtSec > 0 {
		t := time.Unix(req.OccurredAtSec, 0).UTC()
		occurredAt = &t
	}
	var amount *float64
	if req.Amount != 0 {
		amount = &req.Amount
	}

	in := dedupmodel.TicketCreate{
		TicketNumber:  req.TicketNumber,
		Summary:       req.Summary,
		Description:   strPtr(req.Description),
		Category:      req.Category,
		Subcategory:   strPtr(req.Subcategory),
		Channel:       req.Channel,
		Severity:      strPtr(req.Severity),
		Merchant:      strPtr(req.Merchant),
		CustomerID:    req.CustomerId,
		Name:          strPtr(req.Name),
		MobileNumber:  strPtr(req.MobileNumber),
		Email:         strPtr(req.Email),
		AccountType:   strPtr(req.AccountType),
		TransactionID: strPtr(req.TransactionId),
		Amount:        amount,
		Currency:      strPtr(req.Currency),
		OccurredAt:    occurredAt,
		Status:        dedupmodel.TicketStatus(req.Status),
		Priority:      dedupmodel.TicketPriority(req.Priority),
		CreatedAt:     createdAt,
	}

	ticket, err := s.ingest.IngestTicket(ctx, in)
	if err != nil {
		return nil, translateErr(err)
	}

	return &IngestTicketResponse{Ticket: &TicketProto{
		Id:              ticket.ID.String(),
		TicketNumber:    ticket.TicketNumber,
		ClusterId:       ticket.ClusterID.String(),
		Decision:        string(ticket.Dedup.Decision),
		DecisionReason:  ticket.Dedup.DecisionReason,
		ConfidenceScore: ticket.Dedup.ConfidenceScore,
	}}, nil
}

func (s *Service) DismissCluster(ctx context.Context, req *DismissClusterRequest) (*DismissClusterResponse, error) {
	clusterID, err := uuid.Parse(req.ClusterId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid cluster_id")
	}

	cluster, err := s.clustering.DismissCluster(ctx, clusterID, req.PartitionKey, req.DismissedBy, strPtr(req.Reason))
	if err != nil {
		return nil, translateErr(err)
	}
	return &DismissClusterResponse{Cluster: clusterProto(cluster)}, nil
}

func (s *Service) RemoveMember(ctx context.Context, req *RemoveMemberRequest) (*RemoveMemberResponse, error) {
	clusterID, err := uuid.Parse(req.ClusterId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid cluster_id")
	}
	ticketID, err := uuid.Parse(req.TicketId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid ticket_id")
	}

	cluster, err := s.clustering.RemoveMember(ctx, clusterID, ticketID, req.ClusterPartitionKey, req.TicketPartitionKey)
	if err != nil {
		return nil, translateErr(err)
	}
	return &RemoveMemberResponse{Cluster: clusterProto(cluster)}, nil
}

func (s *Service) MergeCluster(ctx context.Context, req *MergeClusterRequest) (*MergeClusterResponse, error) {
	clusterID, err := uuid.Parse(req.ClusterId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid cluster_id")
	}
	canonicalID, err := uuid.Parse(req.CanonicalTicketId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid canonical_ticket_id")
	}

	op, err := s.merge.MergeCluster(ctx, clusterID, canonicalID, req.PartitionKey, req.MergedBy)
	if err != nil {
		return nil, translateErr(err)
	}
	return &MergeClusterResponse{Merge: mergeProto(op)}, nil
}

func (s *Service) RevertMerge(ctx context.Context, req *RevertMergeRequest) (*RevertMergeResponse, error) {
	mergeID, err := uuid.Parse(req.MergeId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid merge_id")
	}

	op, err := s.merge.RevertMerge(ctx, mergeID, req.PartitionKey, req.RevertedBy, strPtr(req.Reason), req.Force)
	if err != nil {
		return nil, translateErr(err)
	}
	return &RevertMergeResponse{Merge: mergeProto(op)}, nil
}

func clusterProto(c *dedupmodel.Cluster) *ClusterProto {
	return &ClusterProto{
		Id:          c.ID.String(),
		Status:      string(c.Status),
		TicketCount: int32(c.TicketCount),
		OpenCount:   int32(c.OpenCount),
	}
}

func mergeProto(op *dedupmodel.MergeOperation) *MergeOperationProto {
	secondaries := make([]string, len(op.SecondaryTicketIDs))
	for i, id := range op.SecondaryTicketIDs {
		secondaries[i] = id.String()
	}
	return &MergeOperationProto{
		Id:                 op.ID.String(),
		ClusterId:          op.ClusterID.String(),
		PrimaryTicketId:    op.PrimaryTicketID.String(),
		SecondaryTicketIds: secondaries,
		Status:             string(op.Status),
		RevertDeadlineSec:  op.RevertDeadline.Unix(),
	}
}
