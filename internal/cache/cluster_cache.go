// Package cache is a Redis-backed read-through cache in front of the
// cluster point reads served by the REST API. The clustering service's
// ETag-retry loop reads the cluster store directly, not through it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
)

// ClusterGetter is the subset of clusterstore.Store this cache
// wraps; any store with the same point-read shape can sit behind it.
type ClusterGetter interface {
	Get(ctx context.Context, pk, id string) (*dedupmodel.Cluster, error)
}

// Config configures the Redis connection backing a ClusterCache.
type Config struct {
	Addr         string
	Password     string
	DB           int
	TTL          time.Duration
	PoolSize     int
	MinIdleConns int
}

// Metrics tracks cache hit/miss/error counts and operation latency.
type Metrics struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	errors  prometheus.Counter
	latency prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		hits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dedup_cluster_cache_hits_total",
			Help: "Total number of cluster cache hits.",
		}),
		misses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dedup_cluster_cache_misses_total",
			Help: "Total number of cluster cache misses.",
		}),
		errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dedup_cluster_cache_errors_total",
			Help: "Total number of cluster cache backend errors.",
		}),
		latency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dedup_cluster_cache_operation_duration_seconds",
			Help:    "Cluster cache operation latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ClusterCache is a read-through cache: Get tries Redis first, falls
// back to next on a miss, and populates Redis with what it found.
// Entries expire by TTL; the cache has no subscription to store
// mutations, so a read can trail a concurrent write by up to the TTL.
// Callers that need read-your-writes call Invalidate after the write.
type ClusterCache struct {
	client  *redis.Client
	next    ClusterGetter
	ttl     time.Duration
	metrics *Metrics
}

// New dials Redis and returns a ClusterCache wrapping next.
func New(cfg Config, next ClusterGetter) (*ClusterCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &ClusterCache{client: client, next: next, ttl: ttl, metrics: newMetrics()}, nil
}

func cacheKey(pk, id string) string { return "cluster:" + pk + ":" + id }

// Get returns the cluster, populating the cache on a miss.
func (c *ClusterCache) Get(ctx context.Context, pk, id string) (*dedupmodel.Cluster, error) {
	timer := prometheus.NewTimer(c.metrics.latency)
	defer timer.ObserveDuration()

	key := cacheKey(pk, id)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cluster dedupmodel.Cluster
		if unmarshalErr := json.Unmarshal(raw, &cluster); unmarshalErr == nil {
			c.metrics.hits.Inc()
			return &cluster, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.metrics.errors.Inc()
	}
	c.metrics.misses.Inc()

	cluster, err := c.next.Get(ctx, pk, id)
	if err != nil {
		return nil, err
	}

	if body, marshalErr := json.Marshal(cluster); marshalErr == nil {
		if setErr := c.client.Set(ctx, key, body, c.ttl).Err(); setErr != nil {
			c.metrics.errors.Inc()
		}
	}
	return cluster, nil
}

// Invalidate evicts a cluster's cache entry after a write, so the next
// Get re-reads from the underlying store instead of serving stale data.
func (c *ClusterCache) Invalidate(ctx context.Context, pk, id string) error {
	if err := c.client.Del(ctx, cacheKey(pk, id)).Err(); err != nil {
		c.metrics.errors.Inc()
		return err
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (c *ClusterCache) Close() error { return c.client.Close() }
