// Package ingest is the single entry point for bringing a new ticket
// into the system: it builds the embedding text, calls the embedder,
// runs cluster-first dedup, and persists the ticket in one write with
// its vector, cluster assignment, and dedup decision attached.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gotrs-io/deduptickets/internal/clustering"
	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
	"github.com/gotrs-io/deduptickets/internal/dedupengine"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
	"github.com/gotrs-io/deduptickets/internal/embedder"
	"github.com/gotrs-io/deduptickets/internal/metrics"
	"github.com/gotrs-io/deduptickets/internal/ticketstore"
)

// Coordinator wires ticket storage, embedding, and clustering into the
// single IngestTicket operation.
type Coordinator struct {
	tickets         *ticketstore.Store
	embedder        embedder.Embedder
	clustering      *clustering.Service
	dedupWindowDays int
	metrics         metrics.Recorder
}

// New builds a Coordinator. Metrics observation is a no-op until
// WithMetrics is called.
func New(tickets *ticketstore.Store, emb embedder.Embedder, clusteringSvc *clustering.Service, dedupWindowDays int) *Coordinator {
	return &Coordinator{tickets: tickets, embedder: emb, clustering: clusteringSvc, dedupWindowDays: dedupWindowDays, metrics: metrics.Noop()}
}

// WithMetrics swaps in a live Recorder, returning c for chaining at
// construction time.
func (c *Coordinator) WithMetrics(r metrics.Recorder) *Coordinator {
	c.metrics = r
	return c
}

// IngestTicket is the ordered pipeline: reject duplicate ticket numbers,
// embed the PII-excluding dedup text, find-or-create a cluster, then
// persist the ticket with its vector/cluster/dedup-decision attached.
//
// If embedding fails, the ticket is never created; callers surface
// this as a 503-equivalent rather than creating an unembedded ticket
// that could never be deduplicated.
func (c *Coordinator) IngestTicket(ctx context.Context, in dedupmodel.TicketCreate) (*dedupmodel.Ticket, error) {
	partitionKey := dedupengine.MonthKey(in.CreatedAt)

	if _, err := c.tickets.FindByTicketNumber(ctx, partitionKey, in.TicketNumber); err == nil {
		return nil, dedeperrors.New(dedeperrors.Conflict, "duplicate_ticket_number",
			"ticket with this ticket_number already exists")
	} else if dedeperrors.KindOf(err) != dedeperrors.NotFound {
		return nil, err
	}

	dedupText := embedder.BuildDedupText(&in)
	embedStart := time.Now()
	vector, err := c.embedder.Embed(ctx, dedupText)
	c.metrics.ObserveEmbed(time.Since(embedStart).Seconds(), err)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = dedupmodel.TicketStatusOpen
	}
	priority := in.Priority
	if priority == "" {
		priority = dedupmodel.PriorityMedium
	}

	ticket := &dedupmodel.Ticket{
		ID:            uuid.New(),
		TicketNumber:  in.TicketNumber,
		Summary:       in.Summary,
		Description:   in.Description,
		Category:      in.Category,
		Subcategory:   in.Subcategory,
		Channel:       in.Channel,
		Severity:      in.Severity,
		Merchant:      in.Merchant,
		CustomerID:    in.CustomerID,
		Name:          in.Name,
		MobileNumber:  in.MobileNumber,
		Email:         in.Email,
		AccountType:   in.AccountType,
		TransactionID: in.TransactionID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		OccurredAt:    in.OccurredAt,
		Status:        status,
		Priority:      priority,
		DedupText:     dedupText,
		ContentVector: vector,
		CreatedAt:     in.CreatedAt,
		UpdatedAt:     in.CreatedAt,
	}

	result, err := c.clustering.FindOrCreateCluster(ctx, ticket, partitionKey, c.dedupWindowDays)
	if err != nil {
		return nil, err
	}

	decision := result.Decision
	ticket.ClusterID = result.Cluster.ID
	ticket.Dedup = &decision

	if err := c.tickets.Create(ctx, partitionKey, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}
