// Package httpembed is an HTTP JSON client Embedder implementation:
// a single pooled *http.Client, JSON in, JSON out, errors wrapped
// with status and body context.
package httpembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
	"github.com/gotrs-io/deduptickets/internal/embedder"
)

// Config configures the HTTP embedding provider. APIKey is optional;
// some self-hosted embedding servers (e.g. a local sentence-transformers
// sidecar) require none.
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// Client is an Embedder backed by a single HTTP endpoint accepting
// {"input": "...", "model": "...", "dimensions": N} and returning
// {"data": [{"embedding": [...]}]}, the shape shared by Azure OpenAI,
// OpenAI, and most OpenAI-compatible embedding servers.
type Client struct {
	cfg  Config
	http *http.Client
}

// New validates cfg and builds a ready-to-use Client. Callers normally
// reach this indirectly through NewFactory + embedder.Lazy so a missing
// endpoint only fails the first embed call, not process startup.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, dedeperrors.New(dedeperrors.InvalidState, "embedder_endpoint_missing",
			"embedding endpoint not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

// NewFactory adapts New into an embedder.Factory for use with embedder.Lazy.
func NewFactory(cfg Config) embedder.Factory {
	return func() (embedder.Embedder, error) {
		return New(cfg)
	}
}

type embedRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed posts text to the configured endpoint and returns the first
// embedding vector in the response.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{Input: text, Model: c.cfg.Model, Dimensions: c.cfg.Dimensions})
	if err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.Unavailable, "embed_request_marshal_failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.Unavailable, "embed_request_build_failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.Unavailable, "embed_provider_unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return nil, dedeperrors.New(dedeperrors.Unavailable, "embed_provider_failure",
			fmt.Sprintf("embedding provider returned %d: %s", resp.StatusCode, string(b)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.Unavailable, "embed_response_decode_failed", err)
	}
	if len(out.Data) == 0 {
		return nil, dedeperrors.New(dedeperrors.Unavailable, "embed_provider_failure", "embedding response had no data")
	}
	return out.Data[0].Embedding, nil
}
