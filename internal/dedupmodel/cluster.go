package dedupmodel

import (
	"time"

	"github.com/google/uuid"
)

// ClusterStatus is the cluster lifecycle state: candidate and pending
// interconvert as members come and go; merged, dismissed and expired
// are terminal for the dedup pipeline.
type ClusterStatus string

const (
	ClusterCandidate ClusterStatus = "candidate"
	ClusterPending   ClusterStatus = "pending"
	ClusterMerged    ClusterStatus = "merged"
	ClusterDismissed ClusterStatus = "dismissed"
	ClusterExpired   ClusterStatus = "expired"
)

// ClusterMember is one ticket's entry in a cluster's member list.
type ClusterMember struct {
	TicketID        uuid.UUID `json:"ticketId"`
	TicketNumber    string    `json:"ticketNumber"`
	Summary         string    `json:"summary,omitempty"`
	Category        string    `json:"category,omitempty"`
	Subcategory     *string   `json:"subcategory,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	ConfidenceScore *float64  `json:"confidenceScore,omitempty"`
	AddedAt         time.Time `json:"addedAt"`
}

// Cluster is a proposed grouping of duplicate tickets.
//
// Invariants: TicketCount == len(Members) always; status candidate
// iff TicketCount == 1; status pending iff 2 <= TicketCount <=
// MaxMembers.
type Cluster struct {
	ID uuid.UUID `json:"id"`
	PK string    `json:"pk"`

	Status ClusterStatus `json:"status"`

	Members     []ClusterMember `json:"members"`
	TicketCount int             `json:"ticketCount"`
	OpenCount   int             `json:"openCount"`

	CentroidVector []float64 `json:"centroidVector,omitempty"`

	CustomerID  string  `json:"customerId,omitempty"`
	Category    string  `json:"category,omitempty"`
	Subcategory *string `json:"subcategory,omitempty"`

	RepresentativeTicketID uuid.UUID `json:"representativeTicketId"`

	DismissedBy     *string `json:"dismissedBy,omitempty"`
	DismissalReason *string `json:"dismissalReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// ETag is server-assigned; the core never fabricates it. It is
	// carried on the domain struct purely for convenience when a
	// caller wants to inspect the value it read; writers must still
	// go through docstore.Document.ETag for the conditional replace.
	ETag string `json:"-"`
}

// AddMember appends a member, enforcing the capacity cap, and updates
// TicketCount/UpdatedAt. It does not touch the centroid or open count;
// callers (ClusteringService) own those because they need the ticket's
// embedding and open-status respectively.
func (c *Cluster) AddMember(m ClusterMember, maxMembers int, now time.Time) error {
	if len(c.Members) >= maxMembers {
		return ErrClusterFull
	}
	c.Members = append(c.Members, m)
	c.TicketCount = len(c.Members)
	c.UpdatedAt = now
	return nil
}

// RemoveMember removes a member by ticket id. Returns true if a member
// was removed. The centroid is deliberately not recomputed here; the
// centroid is an advisory search hint and the drift is accepted
// rather than paying for a full recompute on every removal.
func (c *Cluster) RemoveMember(ticketID uuid.UUID, now time.Time) bool {
	for i, m := range c.Members {
		if m.TicketID == ticketID {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			c.TicketCount = len(c.Members)
			c.UpdatedAt = now
			return true
		}
	}
	return false
}

// TicketIDs returns the member ticket ids in order.
func (c *Cluster) TicketIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.TicketID
	}
	return ids
}

// HasMember reports whether ticketID is a current member.
func (c *Cluster) HasMember(ticketID uuid.UUID) bool {
	for _, m := range c.Members {
		if m.TicketID == ticketID {
			return true
		}
	}
	return false
}
