package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/gotrs-io/deduptickets/internal/api/dedupapi"
	"github.com/gotrs-io/deduptickets/internal/cache"
	"github.com/gotrs-io/deduptickets/internal/clustering"
	"github.com/gotrs-io/deduptickets/internal/clusterstore"
	"github.com/gotrs-io/deduptickets/internal/config"
	"github.com/gotrs-io/deduptickets/internal/dedupengine"
	"github.com/gotrs-io/deduptickets/internal/docstore"
	"github.com/gotrs-io/deduptickets/internal/docstore/memstore"
	"github.com/gotrs-io/deduptickets/internal/docstore/sqlstore"
	"github.com/gotrs-io/deduptickets/internal/embedder"
	"github.com/gotrs-io/deduptickets/internal/embedder/httpembed"
	"github.com/gotrs-io/deduptickets/internal/ingest"
	"github.com/gotrs-io/deduptickets/internal/merge"
	"github.com/gotrs-io/deduptickets/internal/mergestore"
	"github.com/gotrs-io/deduptickets/internal/metrics"
	"github.com/gotrs-io/deduptickets/internal/ticketstore"
)

// App wires every component the dedup pipeline needs for one process
// lifetime. It is built once in main and passed by reference to the
// HTTP and gRPC surfaces. The embedder client it owns is lazy, so a
// misconfigured provider fails the first request that needs it rather
// than startup; the cache client connects during NewApp, and the cache
// is left disabled when that connection fails.
type App struct {
	Config *config.Config

	db       *sql.DB
	cacheCli *cache.ClusterCache

	Metrics    *metrics.Collectors
	Clustering *clustering.Service
	Merge      *merge.Service
	Ingest     *ingest.Coordinator

	// Clusters serves cluster point reads: the Redis read-through
	// cache when enabled, the bare store otherwise.
	Clusters dedupapi.ClusterGetter
}

// NewApp builds an App from cfg. The embedder client is never touched
// here; it's wrapped in embedder.Lazy and only constructed on the
// first Embed call, so a misconfigured embedding endpoint fails the
// first ingest request rather than process startup.
func NewApp(cfg *config.Config) (*App, error) {
	docs, db, err := openDocStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	tickets := ticketstore.New(docs)
	clusters := clusterstore.New(docs)
	merges := mergestore.New(docs)

	engine := dedupengine.New(
		cfg.Engine.Weights,
		cfg.Engine.Thresholds,
		cfg.Engine.TimeProximityMax,
		cfg.Engine.SearchMonths,
	)

	collectors := metrics.New()

	clusteringSvc := clustering.New(clusters, tickets, engine, clustering.Options{
		MaxMembers:       cfg.Clustering.MaxMembers,
		TopK:             cfg.Clustering.TopK,
		FilterByCustomer: cfg.Clustering.FilterByCustomer,
		OpenStatuses:     clustering.DefaultOptions().OpenStatuses,
	}).WithMetrics(collectors)

	mergeSvc := merge.New(tickets, clusters, merges, merge.Options{
		RevertWindow: cfg.Merge.RevertWindow,
		OpenStatuses: merge.DefaultOptions().OpenStatuses,
	}).WithMetrics(collectors)

	lazyEmbedder := embedder.NewLazy(httpembed.NewFactory(httpembed.Config{
		Endpoint:   cfg.Embedder.Endpoint,
		APIKey:     cfg.Embedder.APIKey,
		Model:      cfg.Embedder.Model,
		Dimensions: cfg.Embedder.Dimensions,
		Timeout:    cfg.Embedder.Timeout,
	}))

	coordinator := ingest.New(tickets, lazyEmbedder, clusteringSvc, cfg.Engine.DedupWindowDays).WithMetrics(collectors)

	app := &App{
		Config:     cfg,
		db:         db,
		Metrics:    collectors,
		Clustering: clusteringSvc,
		Merge:      mergeSvc,
		Ingest:     coordinator,
		Clusters:   clusters,
	}

	if cfg.Cache.Enabled {
		clusterCache, err := cache.New(cache.Config{
			Addr:         cfg.Cache.GetAddr(),
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			TTL:          cfg.Cache.TTL,
			PoolSize:     cfg.Cache.PoolSize,
			MinIdleConns: cfg.Cache.MinIdleConns,
		}, clusters)
		if err != nil {
			log.Printf("cluster cache disabled: %v", err)
		} else {
			app.cacheCli = clusterCache
			app.Clusters = clusterCache
		}
	}

	return app, nil
}

// openDocStore builds the docstore.Store backend cfg selects, ensuring
// the three containers exist when the backend is a SQL dialect (memory
// needs no DDL). db is non-nil only for SQL backends, so Close can be
// called unconditionally from main's shutdown path.
func openDocStore(cfg config.StoreConfig) (docstore.Store, *sql.DB, error) {
	if cfg.Backend == "" || cfg.Backend == "memory" {
		return memstore.New(), nil, nil
	}

	var driver string
	var dialect sqlstore.Dialect
	switch cfg.Backend {
	case "postgres":
		driver, dialect = "postgres", sqlstore.PostgresDialect{}
	case "mysql":
		driver, dialect = "mysql", sqlstore.MySQLDialect{}
	case "sqlite":
		driver, dialect = "sqlite3", sqlstore.SQLiteDialect{}
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	sqlDB, err := sql.Open(driver, cfg.GetDSN())
	if err != nil {
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := sqlDB.Ping(); err != nil {
		return nil, nil, fmt.Errorf("failed to ping %s: %w", cfg.Backend, err)
	}

	store := sqlstore.Open(sqlx.NewDb(sqlDB, driver), dialect)
	for _, container := range []string{"tickets", "clusters", "merge_operations"} {
		if err := store.EnsureContainer(context.Background(), container); err != nil {
			return nil, nil, fmt.Errorf("failed to ensure container %q: %w", container, err)
		}
	}
	return store, sqlDB, nil
}

// Close releases the App's long-lived resources (DB pool, cache
// connection). Safe to call even when those weren't opened.
func (a *App) Close() {
	if a.cacheCli != nil {
		_ = a.cacheCli.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
