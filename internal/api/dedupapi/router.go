// Package dedupapi is the REST transport for the five exposed core
// operations (ingest, dismiss, remove member, merge, revert). It is a
// thin translation layer only: every operation it serves is delegated
// straight to internal/ingest, internal/clustering, or internal/merge,
// and the only logic that lives here is request parsing and
// dedeperrors.Kind→HTTP status translation.
package dedupapi

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/gotrs-io/deduptickets/internal/clustering"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
	"github.com/gotrs-io/deduptickets/internal/ingest"
	"github.com/gotrs-io/deduptickets/internal/merge"
)

// ClusterGetter serves cluster point reads for the GET endpoint. Both
// clusterstore.Store and cache.ClusterCache satisfy it, so deployments
// with Redis enabled serve cluster reads through the cache.
type ClusterGetter interface {
	Get(ctx context.Context, pk, id string) (*dedupmodel.Cluster, error)
}

// Router owns the dedup REST handlers and their dependencies.
type Router struct {
	ingest     *ingest.Coordinator
	clustering *clustering.Service
	merge      *merge.Service
	clusters   ClusterGetter
}

// New builds a Router.
func New(ingestCoordinator *ingest.Coordinator, clusteringSvc *clustering.Service, mergeSvc *merge.Service, clusters ClusterGetter) *Router {
	return &Router{ingest: ingestCoordinator, clustering: clusteringSvc, merge: mergeSvc, clusters: clusters}
}

// Register mounts every dedup route onto group.
func (r *Router) Register(group gin.IRouter) {
	group.POST("/tickets", r.handleIngestTicket)
	group.GET("/clusters/:pk/:id", r.handleGetCluster)
	group.POST("/clusters/:pk/:id/dismiss", r.handleDismissCluster)
	group.DELETE("/clusters/:pk/:id/members/:ticketId", r.handleRemoveMember)
	group.POST("/merges", r.handleMergeCluster)
	group.POST("/merges/:id/revert", r.handleRevertMerge)
}
