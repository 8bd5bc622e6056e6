// Package ticketstore is the typed view over docstore.Store for
// Ticket documents: it owns JSON (de)serialization, the ticket_number
// uniqueness constraint within a partition, and the container/PK
// conventions for the "tickets" container.
package ticketstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
	"github.com/gotrs-io/deduptickets/internal/docstore"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
)

const container = "tickets"

// Store is a typed wrapper around a docstore.Store scoped to tickets.
type Store struct {
	docs docstore.Store
}

// New builds a ticketstore.Store over the given document store.
func New(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

// Create persists a new ticket, enforcing ticket_number uniqueness
// within the ticket's partition.
func (s *Store) Create(ctx context.Context, pk string, t *dedupmodel.Ticket) error {
	body, err := json.Marshal(t)
	if err != nil {
		return dedeperrors.Wrap(dedeperrors.StoreError, "ticket_marshal_failed", err)
	}
	doc := docstore.Document{Container: container, PK: pk, ID: t.ID.String(), Body: body}
	if _, err := s.docs.Create(ctx, doc, "ticketNumber"); err != nil {
		if err == docstore.ErrConflict {
			return dedeperrors.New(dedeperrors.Conflict, "duplicate_ticket_number",
				fmt.Sprintf("ticket_number %q already exists in partition %q", t.TicketNumber, pk))
		}
		return dedeperrors.Wrap(dedeperrors.StoreError, "ticket_create_failed", err)
	}
	return nil
}

// Get reads a single ticket by id within its partition.
func (s *Store) Get(ctx context.Context, pk, id string) (*dedupmodel.Ticket, error) {
	doc, err := s.docs.PointRead(ctx, container, pk, id)
	if err != nil {
		if err == docstore.ErrNotFound {
			return nil, dedeperrors.New(dedeperrors.NotFound, "ticket_not_found",
				fmt.Sprintf("ticket %q not found in partition %q", id, pk))
		}
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "ticket_read_failed", err)
	}
	var t dedupmodel.Ticket
	if err := json.Unmarshal(doc.Body, &t); err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "ticket_unmarshal_failed", err)
	}
	return &t, nil
}

// Update replaces a ticket's stored body unconditionally. Tickets,
// unlike clusters and merges, have a single writer per request path,
// so they are not guarded by the ETag-retry protocol.
func (s *Store) Update(ctx context.Context, pk string, t *dedupmodel.Ticket) error {
	body, err := json.Marshal(t)
	if err != nil {
		return dedeperrors.Wrap(dedeperrors.StoreError, "ticket_marshal_failed", err)
	}
	doc := docstore.Document{Container: container, PK: pk, ID: t.ID.String(), Body: body}
	if _, err := s.docs.Upsert(ctx, doc); err != nil {
		return dedeperrors.Wrap(dedeperrors.StoreError, "ticket_update_failed", err)
	}
	return nil
}

// FindByTicketNumber looks up a ticket by its external-facing number
// within a partition, used to reject duplicate ingests before the more
// expensive dedup pipeline runs.
func (s *Store) FindByTicketNumber(ctx context.Context, pk, ticketNumber string) (*dedupmodel.Ticket, error) {
	docs, err := s.docs.Query(ctx, container, docstore.Query{PK: pk, Params: map[string]any{"eq_ticketNumber": ticketNumber}})
	if err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "ticket_query_failed", err)
	}
	if len(docs) == 0 {
		return nil, dedeperrors.New(dedeperrors.NotFound, "ticket_not_found", "no ticket with that ticket_number")
	}
	var t dedupmodel.Ticket
	if err := json.Unmarshal(docs[0].Body, &t); err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "ticket_unmarshal_failed", err)
	}
	return &t, nil
}

// ListByCluster returns every ticket currently assigned to clusterID
// within the partition.
func (s *Store) ListByCluster(ctx context.Context, pk string, clusterID uuid.UUID) ([]*dedupmodel.Ticket, error) {
	docs, err := s.docs.Query(ctx, container, docstore.Query{PK: pk, Params: map[string]any{"eq_clusterId": clusterID.String()}})
	if err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "ticket_query_failed", err)
	}
	out := make([]*dedupmodel.Ticket, 0, len(docs))
	for _, d := range docs {
		var t dedupmodel.Ticket
		if err := json.Unmarshal(d.Body, &t); err != nil {
			return nil, dedeperrors.Wrap(dedeperrors.StoreError, "ticket_unmarshal_failed", err)
		}
		out = append(out, &t)
	}
	return out, nil
}
