package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/deduptickets/internal/clusterstore"
	"github.com/gotrs-io/deduptickets/internal/clustering"
	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
	"github.com/gotrs-io/deduptickets/internal/dedupengine"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
	"github.com/gotrs-io/deduptickets/internal/docstore/memstore"
	"github.com/gotrs-io/deduptickets/internal/ticketstore"
)

type stubEmbedder struct {
	vec []float64
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func newCoordinator(emb *stubEmbedder) (*Coordinator, *ticketstore.Store) {
	docs := memstore.New()
	tickets := ticketstore.New(docs)
	clusters := clusterstore.New(docs)
	engine := dedupengine.New(dedupengine.DefaultWeights(), dedupengine.DefaultThresholds(), 14*24*time.Hour, 2)
	clusteringSvc := clustering.New(clusters, tickets, engine, clustering.DefaultOptions())
	return New(tickets, emb, clusteringSvc, 14), tickets
}

func TestIngestTicket_EmbedsAndCreatesNewCluster(t *testing.T) {
	coord, tickets := newCoordinator(&stubEmbedder{vec: []float64{1, 0, 0}})
	ctx := context.Background()

	email := "someone@example.com"
	ticket, err := coord.IngestTicket(ctx, dedupmodel.TicketCreate{
		TicketNumber: "TCK-1",
		Summary:      "payment failed",
		Category:     "payments",
		Channel:      "app",
		CustomerID:   "cust-1",
		Email:        &email,
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, dedupmodel.DecisionNewCluster, ticket.Dedup.Decision)
	assert.NotContains(t, ticket.DedupText, "someone@example.com")
	assert.NotEqual(t, ticket.ClusterID.String(), "00000000-0000-0000-0000-000000000000")

	stored, err := tickets.Get(ctx, dedupengine.MonthKey(ticket.CreatedAt), ticket.ID.String())
	require.NoError(t, err)
	assert.Equal(t, ticket.ClusterID, stored.ClusterID)
}

func TestIngestTicket_RejectsDuplicateTicketNumber(t *testing.T) {
	coord, _ := newCoordinator(&stubEmbedder{vec: []float64{1, 0, 0}})
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := coord.IngestTicket(ctx, dedupmodel.TicketCreate{
		TicketNumber: "TCK-1", Summary: "a", Category: "payments", Channel: "app",
		CustomerID: "cust-1", CreatedAt: now,
	})
	require.NoError(t, err)

	_, err = coord.IngestTicket(ctx, dedupmodel.TicketCreate{
		TicketNumber: "TCK-1", Summary: "b", Category: "payments", Channel: "app",
		CustomerID: "cust-1", CreatedAt: now,
	})
	require.Error(t, err)
	assert.Equal(t, dedeperrors.Conflict, dedeperrors.KindOf(err))
}

func TestIngestTicket_EmbedFailurePreventsTicketCreation(t *testing.T) {
	coord, tickets := newCoordinator(&stubEmbedder{err: errors.New("provider down")})
	ctx := context.Background()

	_, err := coord.IngestTicket(ctx, dedupmodel.TicketCreate{
		TicketNumber: "TCK-1", Summary: "a", Category: "payments", Channel: "app",
		CustomerID: "cust-1", CreatedAt: time.Now().UTC(),
	})
	require.Error(t, err)

	_, err = tickets.FindByTicketNumber(ctx, dedupengine.MonthKey(time.Now().UTC()), "TCK-1")
	assert.Equal(t, dedeperrors.NotFound, dedeperrors.KindOf(err))
}

func TestIngestTicket_DefaultsStatusAndPriority(t *testing.T) {
	coord, _ := newCoordinator(&stubEmbedder{vec: []float64{1, 0, 0}})
	ctx := context.Background()

	ticket, err := coord.IngestTicket(ctx, dedupmodel.TicketCreate{
		TicketNumber: "TCK-1", Summary: "a", Category: "payments", Channel: "app",
		CustomerID: "cust-1", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, dedupmodel.TicketStatusOpen, ticket.Status)
	assert.Equal(t, dedupmodel.PriorityMedium, ticket.Priority)
}
