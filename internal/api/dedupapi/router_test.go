package dedupapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/deduptickets/internal/clusterstore"
	"github.com/gotrs-io/deduptickets/internal/clustering"
	"github.com/gotrs-io/deduptickets/internal/dedupengine"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
	"github.com/gotrs-io/deduptickets/internal/docstore/memstore"
	"github.com/gotrs-io/deduptickets/internal/ingest"
	"github.com/gotrs-io/deduptickets/internal/merge"
	"github.com/gotrs-io/deduptickets/internal/mergestore"
	"github.com/gotrs-io/deduptickets/internal/ticketstore"
)

type stubEmbedder struct{ vec []float64 }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) { return s.vec, nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docs := memstore.New()
	tickets := ticketstore.New(docs)
	clusters := clusterstore.New(docs)
	merges := mergestore.New(docs)
	engine := dedupengine.New(dedupengine.DefaultWeights(), dedupengine.DefaultThresholds(), 14*24*time.Hour, 2)
	clusteringSvc := clustering.New(clusters, tickets, engine, clustering.DefaultOptions())
	mergeSvc := merge.New(tickets, clusters, merges, merge.DefaultOptions())
	coordinator := ingest.New(tickets, &stubEmbedder{vec: []float64{1, 0, 0}}, clusteringSvc, 14)

	ginEngine := gin.New()
	New(coordinator, clusteringSvc, mergeSvc, clusters).Register(ginEngine.Group("/v1"))
	return httptest.NewServer(ginEngine)
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHandleIngestTicket_CreatesTicketAndReturns201(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, decoded := doJSON(t, srv, http.MethodPost, "/v1/tickets", dedupmodel.TicketCreate{
		TicketNumber: "TCK-1",
		Summary:      "payment failed",
		Category:     "payments",
		Channel:      "app",
		CustomerID:   "cust-1",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "TCK-1", decoded["ticketNumber"])
}

func TestHandleIngestTicket_DuplicateTicketNumberReturns409(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	in := dedupmodel.TicketCreate{
		TicketNumber: "TCK-2",
		Summary:      "payment failed",
		Category:     "payments",
		Channel:      "app",
		CustomerID:   "cust-1",
	}
	resp1, _ := doJSON(t, srv, http.MethodPost, "/v1/tickets", in)
	require.Equal(t, http.StatusCreated, resp1.StatusCode)

	resp2, decoded := doJSON(t, srv, http.MethodPost, "/v1/tickets", in)
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)
	assert.Equal(t, "duplicate_ticket_number", decoded["code"])
}

func TestHandleIngestTicket_InvalidBodyReturns400(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, _ := doJSON(t, srv, http.MethodPost, "/v1/tickets", map[string]any{"summary": "missing required fields"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleGetCluster_ReturnsIngestedCluster(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	now := time.Now().UTC()
	resp, decoded := doJSON(t, srv, http.MethodPost, "/v1/tickets", dedupmodel.TicketCreate{
		TicketNumber: "TCK-10",
		Summary:      "payment failed",
		Category:     "payments",
		Channel:      "app",
		CustomerID:   "cust-1",
		CreatedAt:    now,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	clusterID, _ := decoded["clusterId"].(string)
	require.NotEmpty(t, clusterID)

	pk := now.Format("2006-01")
	getResp, cluster := doJSON(t, srv, http.MethodGet, "/v1/clusters/"+pk+"/"+clusterID, nil)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, clusterID, cluster["id"])
	assert.Equal(t, "candidate", cluster["status"])
}

func TestHandleDismissCluster_UnknownClusterReturns404(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, _ := doJSON(t, srv, http.MethodPost, "/v1/clusters/2026-01/"+uuid.New().String()+"/dismiss",
		map[string]any{"dismissedBy": "agent-1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
