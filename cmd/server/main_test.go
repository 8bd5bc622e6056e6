package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/deduptickets/internal/config"
	"github.com/gotrs-io/deduptickets/internal/dedupengine"
)

func testConfig(embedEndpoint string) *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "deduptickets", Env: "test"},
		Server:   config.ServerConfig{Host: "0.0.0.0", Port: 8080, GRPCPort: 9090, ShutdownTimeout: 5 * time.Second},
		Store:    config.StoreConfig{Backend: "memory"},
		Embedder: config.EmbedderConfig{Endpoint: embedEndpoint, Model: "test-embed", Dimensions: 3, Timeout: 5 * time.Second},
		Engine: config.EngineConfig{
			Weights:          dedupengine.DefaultWeights(),
			Thresholds:       dedupengine.DefaultThresholds(),
			TimeProximityMax: 14 * 24 * time.Hour,
			SearchMonths:     2,
			DedupWindowDays:  14,
		},
		Clustering: config.ClusteringConfig{MaxMembers: 100, TopK: 10},
		Merge:      config.MergeConfig{RevertWindow: 24 * time.Hour},
		Metrics:    config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newStubEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T) *httptest.Server {
	t.Helper()
	embedSrv := newStubEmbeddingServer(t)
	app, err := NewApp(testConfig(embedSrv.URL))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return httptest.NewServer(newRouter(app))
}

func TestHealthzReturnsOK(t *testing.T) {
	srv := newTestRouter(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	srv := newTestRouter(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIngestTicketEndToEndThroughRouter(t *testing.T) {
	srv := newTestRouter(t)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{
		"ticketNumber": "TCK-100",
		"summary":      "card declined at checkout",
		"category":     "payments",
		"channel":      "app",
		"customerId":   "cust-42",
	})

	resp, err := http.Post(srv.URL+"/v1/tickets", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestUnknownRouteReturns404(t *testing.T) {
	srv := newTestRouter(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
