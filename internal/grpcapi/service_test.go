package grpcapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gotrs-io/deduptickets/internal/clusterstore"
	"github.com/gotrs-io/deduptickets/internal/clustering"
	"github.com/gotrs-io/deduptickets/internal/dedupengine"
	"github.com/gotrs-io/deduptickets/internal/docstore/memstore"
	"github.com/gotrs-io/deduptickets/internal/ingest"
	"github.com/gotrs-io/deduptickets/internal/merge"
	"github.com/gotrs-io/deduptickets/internal/mergestore"
	"github.com/gotrs-io/deduptickets/internal/ticketstore"
)

type stubEmbedder struct{ vec []float64 }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) { return s.vec, nil }

func newTestService() *Service {
	docs := memstore.New()
	tickets := ticketstore.New(docs)
	clusters := clusterstore.New(docs)
	merges := mergestore.New(docs)
	engine := dedupengine.New(dedupengine.DefaultWeights(), dedupengine.DefaultThresholds(), 14*24*time.Hour, 2)
	clusteringSvc := clustering.New(clusters, tickets, engine, clustering.DefaultOptions())
	mergeSvc := merge.New(tickets, clusters, merges, merge.DefaultOptions())
	coordinator := ingest.New(tickets, &stubEmbedder{vec: []float64{1, 0, 0}}, clusteringSvc, 14)
	return New(coordinator, clusteringSvc, mergeSvc)
}

func TestIngestTicket_ReturnsClusterAssignment(t *testing.T) {
	svc := newTestService()

	resp, err := svc.IngestTicket(context.Background(), &IngestTicketRequest{
		TicketNumber: "TCK-1",
		Summary:      "payment failed",
		Category:     "payments",
		Channel:      "app",
		CustomerId:   "cust-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "new_cluster", resp.Ticket.Decision)
	assert.NotEmpty(t, resp.Ticket.ClusterId)
}

func TestIngestTicket_InvalidTicketNumberReuseReturnsAlreadyExists(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	req := &IngestTicketRequest{
		TicketNumber: "TCK-2",
		Summary:      "payment failed",
		Category:     "payments",
		Channel:      "app",
		CustomerId:   "cust-1",
	}
	_, err := svc.IngestTicket(ctx, req)
	require.NoError(t, err)

	_, err = svc.IngestTicket(ctx, req)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.AlreadyExists, st.Code())
}

func TestDismissCluster_InvalidClusterIdReturnsInvalidArgument(t *testing.T) {
	svc := newTestService()

	_, err := svc.DismissCluster(context.Background(), &DismissClusterRequest{
		PartitionKey: "2026-01",
		ClusterId:    "not-a-uuid",
		DismissedBy:  "agent-1",
	})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}

func TestDismissCluster_UnknownClusterReturnsNotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.DismissCluster(context.Background(), &DismissClusterRequest{
		PartitionKey: "2026-01",
		ClusterId:    "00000000-0000-0000-0000-000000000000",
		DismissedBy:  "agent-1",
	})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
}
