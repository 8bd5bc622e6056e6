// Package dedupmodel holds the domain entities for the dedup engine:
// Ticket, Cluster and MergeOperation, and the small value types they
// share. None of these types perform I/O; persistence is the job of
// the docstore/ticketstore/clusterstore/mergestore packages.
package dedupmodel

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle status of a ticket.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
	TicketStatusMerged   TicketStatus = "merged"
)

// TicketPriority is the operator-facing urgency of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// Decision is the three-tier outcome of DedupEngine.Classify.
type Decision string

const (
	DecisionAuto       Decision = "auto"
	DecisionReview     Decision = "review"
	DecisionNewCluster Decision = "new_cluster"
)

// Decision reasons recorded on DedupDecision and emitted in metrics.
const (
	ReasonNoCandidates         = "no_candidates"
	ReasonAboveAutoThreshold   = "above_auto_threshold"
	ReasonReviewBand           = "review_band"
	ReasonBelowReviewThreshold = "below_review_threshold"
)

// Signals carries the structured-field and time-proximity inputs that,
// together with the semantic score, produced a confidence score.
type Signals struct {
	SubcategoryMatch bool    `json:"subcategoryMatch"`
	CategoryMatch    bool    `json:"categoryMatch"`
	TimeProximity    float64 `json:"timeProximity"`
}

// DedupDecision is the metadata recorded on a ticket describing how it
// was (or wasn't) joined to a cluster.
type DedupDecision struct {
	Decision         Decision  `json:"decision"`
	DecisionReason   string    `json:"decisionReason"`
	ConfidenceScore  float64   `json:"confidenceScore"`
	MatchedClusterID uuid.UUID `json:"matchedClusterId"`
	SemanticScore    float64   `json:"semanticScore"`
	Signals          Signals   `json:"signals"`
}

// Ticket is a single support ticket.
type Ticket struct {
	ID           uuid.UUID `json:"id"`
	TicketNumber string    `json:"ticketNumber"`

	Summary     string  `json:"summary"`
	Description *string `json:"description,omitempty"`
	Category    string  `json:"category"`
	Subcategory *string `json:"subcategory,omitempty"`
	Channel     string  `json:"channel"`
	Severity    *string `json:"severity,omitempty"`
	Merchant    *string `json:"merchant,omitempty"`

	// PII: never embedded, never concatenated into DedupText.
	CustomerID   string  `json:"customerId"`
	Name         *string `json:"name,omitempty"`
	MobileNumber *string `json:"mobileNumber,omitempty"`
	Email        *string `json:"email,omitempty"`
	AccountType  *string `json:"accountType,omitempty"`

	TransactionID *string    `json:"transactionId,omitempty"`
	Amount        *float64   `json:"amount,omitempty"`
	Currency      *string    `json:"currency,omitempty"`
	OccurredAt    *time.Time `json:"occurredAt,omitempty"`

	Status   TicketStatus   `json:"status"`
	Priority TicketPriority `json:"priority"`

	DedupText     string         `json:"dedupText"`
	ContentVector []float64      `json:"contentVector"`
	ClusterID     uuid.UUID      `json:"clusterId"`
	Dedup         *DedupDecision `json:"dedup,omitempty"`
	MergedIntoID  *uuid.UUID     `json:"mergedIntoId,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

// IsOpen reports whether status is in the given open-status set.
func (t *Ticket) IsOpen(openStatuses map[TicketStatus]struct{}) bool {
	_, ok := openStatuses[t.Status]
	return ok
}

// TicketCreate is the caller-supplied payload for IngestCoordinator.IngestTicket.
// It carries everything a Ticket needs except the fields IngestCoordinator
// derives itself (id, dedup_text, content_vector, cluster_id, dedup, timestamps).
type TicketCreate struct {
	TicketNumber string `json:"ticketNumber" binding:"required"`

	Summary     string  `json:"summary" binding:"required"`
	Description *string `json:"description,omitempty"`
	Category    string  `json:"category" binding:"required"`
	Subcategory *string `json:"subcategory,omitempty"`
	Channel     string  `json:"channel" binding:"required"`
	Severity    *string `json:"severity,omitempty"`
	Merchant    *string `json:"merchant,omitempty"`

	CustomerID   string  `json:"customerId" binding:"required"`
	Name         *string `json:"name,omitempty"`
	MobileNumber *string `json:"mobileNumber,omitempty"`
	Email        *string `json:"email,omitempty"`
	AccountType  *string `json:"accountType,omitempty"`

	TransactionID *string    `json:"transactionId,omitempty"`
	Amount        *float64   `json:"amount,omitempty"`
	Currency      *string    `json:"currency,omitempty"`
	OccurredAt    *time.Time `json:"occurredAt,omitempty"`

	Status   TicketStatus   `json:"status,omitempty"`
	Priority TicketPriority `json:"priority,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
