package grpcapi

import "context"

// Proto stub definitions until we generate from .proto files. This
// lets the service compile without a protoc step.

type IngestTicketRequest struct {
	TicketNumber string `json:"ticket_number"`

	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Channel     string `json:"channel"`
	Severity    string `json:"severity,omitempty"`
	Merchant    string `json:"merchant,omitempty"`

	CustomerId   string `json:"customer_id"`
	Name         string `json:"name,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`
	Email        string `json:"email,omitempty"`
	AccountType  string `json:"account_type,omitempty"`

	TransactionId string  `json:"transaction_id,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	OccurredAtSec int64   `json:"occurred_at_sec,omitempty"`

	Status       string `json:"status,omitempty"`
	Priority     string `json:"priority,omitempty"`
	CreatedAtSec int64  `json:"created_at_sec,omitempty"`
}

type TicketProto struct {
	Id              string  `json:"id"`
	TicketNumber    string  `json:"ticket_number"`
	ClusterId       string  `json:"cluster_id"`
	Decision        string  `json:"decision"`
	DecisionReason  string  `json:"decision_reason"`
	ConfidenceScore float64 `json:"confidence_score"`
}

type IngestTicketResponse struct {
	Ticket *TicketProto `json:"ticket"`
}

type DismissClusterRequest struct {
	PartitionKey string `json:"partition_key"`
	ClusterId    string `json:"cluster_id"`
	DismissedBy  string `json:"dismissed_by"`
	Reason       string `json:"reason,omitempty"`
}

type ClusterProto struct {
	Id          string `json:"id"`
	Status      string `json:"status"`
	TicketCount int32  `json:"ticket_count"`
	OpenCount   int32  `json:"open_count"`
}

type DismissClusterResponse struct {
	Cluster *ClusterProto `json:"cluster"`
}

type RemoveMemberRequest struct {
	ClusterPartitionKey string `json:"cluster_partition_key"`
	TicketPartitionKey  string `json:"ticket_partition_key"`
	ClusterId           string `json:"cluster_id"`
	TicketId            string `json:"ticket_id"`
}

type RemoveMemberResponse struct {
	Cluster *ClusterProto `json:"cluster"`
}

type MergeClusterRequest struct {
	PartitionKey      string `json:"partition_key"`
	ClusterId         string `json:"cluster_id"`
	CanonicalTicketId string `json:"canonical_ticket_id"`
	MergedBy          string `json:"merged_by"`
}

type MergeOperationProto struct {
	Id                 string   `json:"id"`
	ClusterId          string   `json:"cluster_id"`
	PrimaryTicketId    string   `json:"primary_ticket_id"`
	SecondaryTicketIds []string `json:"secondary_ticket_ids"`
	Status             string   `json:"status"`
	RevertDeadlineSec  int64    `json:"revert_deadline_sec"`
}

type MergeClusterResponse struct {
	Merge *MergeOperationProto `json:"merge"`
}

type RevertMergeRequest struct {
	PartitionKey string `json:"partition_key"`
	MergeId      string `json:"merge_id"`
	RevertedBy   string `json:"reverted_by"`
	Reason       string `json:"reason,omitempty"`
	Force        bool   `json:"force,omitempty"`
}

type RevertMergeResponse struct {
	Merge *MergeOperationProto `json:"merge"`
}

// DedupServiceServer is the gRPC server interface for the five
// exposed core operations.
type DedupServiceServer interface {
	IngestTicket(context.Context, *IngestTicketRequest) (*IngestTicketResponse, error)
	DismissCluster(context.Context, *DismissClusterRequest) (*DismissClusterResponse, error)
	RemoveMember(context.Context, *RemoveMemberRequest) (*RemoveMemberResponse, error)
	MergeCluster(context.Context, *MergeClusterRequest) (*MergeClusterResponse, error)
	RevertMerge(context.Context, *RevertMergeRequest) (*RevertMergeResponse, error)
}

// UnimplementedDedupServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedDedupServiceServer struct{}

func (UnimplementedDedupServiceServer) IngestTicket(context.Context, *IngestTicketRequest) (*IngestTicketResponse, error) {
	return nil, nil //nolint:nilnil
}

func (UnimplementedDedupServiceServer) DismissCluster(context.Context, *DismissClusterRequest) (*DismissClusterResponse, error) {
	return nil, nil //nolint:nilnil
}

func (UnimplementedDedupServiceServer) RemoveMember(context.Context, *RemoveMemberRequest) (*RemoveMemberResponse, error) {
	return nil, nil //nolint:nilnil
}

func (UnimplementedDedupServiceServer) MergeCluster(context.Context, *MergeClusterRequest) (*MergeClusterResponse, error) {
	return nil, nil //nolint:nilnil
}

func (UnimplementedDedupServiceServer) RevertMerge(context.Context, *RevertMergeRequest) (*RevertMergeResponse, error) {
	return nil, nil //nolint:nilnil
}

// RegisterDedupServiceServer registers the service with a gRPC server.
// Stub pending a real .proto/protoc step.
func RegisterDedupServiceServer(s interface{}, srv DedupServiceServer) {
	// Stub implementation for compilation
}
