package dedupmodel

import (
	"time"

	"github.com/google/uuid"
)

// MergeBehavior is a label for downstream tooling; the engine treats
// all three values identically at the cluster-state level.
type MergeBehavior string

const (
	MergeKeepLatest   MergeBehavior = "keep_latest"
	MergeCombineNotes MergeBehavior = "combine_notes"
	MergeRetainAll    MergeBehavior = "retain_all"
)

// MergeStatus is the lifecycle of a MergeOperation.
type MergeStatus string

const (
	MergeStatusCompleted MergeStatus = "completed"
	MergeStatusReverted  MergeStatus = "reverted"
)

// TicketSnapshot is the pre-merge state of one secondary ticket,
// captured so a revert can restore it exactly.
type TicketSnapshot struct {
	TicketID     uuid.UUID  `json:"ticketId"`
	ClusterID    *uuid.UUID `json:"clusterId"`
	MergedIntoID *uuid.UUID `json:"mergedIntoId"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// MergeOperation records one merge (and, if applicable, its later revert).
type MergeOperation struct {
	ID                 uuid.UUID     `json:"id"`
	PK                 string        `json:"pk"`
	ClusterID          uuid.UUID     `json:"clusterId"`
	PrimaryTicketID    uuid.UUID     `json:"primaryTicketId"`
	SecondaryTicketIDs []uuid.UUID   `json:"secondaryTicketIds"`
	MergeBehavior      MergeBehavior `json:"mergeBehavior"`

	PerformedBy    string    `json:"performedBy"`
	PerformedAt    time.Time `json:"performedAt"`
	RevertDeadline time.Time `json:"revertDeadline"`

	Status MergeStatus `json:"status"`

	OriginalStates []TicketSnapshot `json:"originalStates"`

	RevertedBy     *string    `json:"revertedBy,omitempty"`
	RevertedAt     *time.Time `json:"revertedAt,omitempty"`
	RevertReason   *string    `json:"revertReason,omitempty"`

	ETag string `json:"-"`
}

// Snapshot returns the captured snapshot for ticketID, or nil.
func (m *MergeOperation) Snapshot(ticketID uuid.UUID) *TicketSnapshot {
	for i := range m.OriginalStates {
		if m.OriginalStates[i].TicketID == ticketID {
			return &m.OriginalStates[i]
		}
	}
	return nil
}
