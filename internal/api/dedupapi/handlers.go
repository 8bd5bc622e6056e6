package dedupapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
)

// handleIngestTicket is POST /tickets.
func (r *Router) handleIngestTicket(c *gin.Context) {
	var in dedupmodel.TicketCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: "invalid_request", Message: err.Error()})
		return
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	ticket, err := r.ingest.IngestTicket(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// handleGetCluster is GET /clusters/:pk/:id.
func (r *Router) handleGetCluster(c *gin.Context) {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: "invalid_cluster_id", Message: err.Error()})
		return
	}

	cluster, err := r.clusters.Get(c.Request.Context(), c.Param("pk"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cluster)
}

// handleDismissCluster is POST /clusters/:pk/:id/dismiss.
func (r *Router) handleDismissCluster(c *gin.Context) {
	clusterID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: "invalid_cluster_id", Message: err.Error()})
		return
	}

	var body struct {
		DismissedBy string  `json:"dismissedBy" binding:"required"`
		Reason      *string `json:"reason,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: "invalid_request", Message: err.Error()})
		return
	}

	cluster, err := r.clustering.DismissCluster(c.Request.Context(), clusterID, c.Param("pk"), body.DismissedBy, body.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cluster)
}

// handleRemoveMember is DELETE /clusters/:pk/:id/members/:ticketId.
// The ticket's own partition is passed via the ticketPk query param;
// it only differs from the cluster's partition when the ticket and
// cluster were created in different months.
func (r *Router) handleRemoveMember(c *gin.Context) {
	clusterID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: "invalid_cluster_id", Message: err.Error()})
		return
	}
	ticketID, err := uuid.Parse(c.Param("ticketId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: "invalid_ticket_id", Message: err.Error()})
		return
	}
	clusterPK := c.Param("pk")
	ticketPK := c.DefaultQuery("ticketPk", clusterPK)

	cluster, err := r.clustering.RemoveMember(c.Request.Context(), clusterID, ticketID, clusterPK, ticketPK)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cluster)
}

// handleMergeCluster is POST /merges.
func (r *Router) handleMergeCluster(c *gin.Context) {
	var body struct {
		ClusterID         uuid.UUID `json:"clusterId" binding:"required"`
		CanonicalTicketID uuid.UUID `json:"canonicalTicketId" binding:"required"`
		PartitionKey      string    `json:"partitionKey" binding:"required"`
		MergedBy          string    `json:"mergedBy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: "invalid_request", Message: err.Error()})
		return
	}

	op, err := r.merge.MergeCluster(c.Request.Context(), body.ClusterID, body.CanonicalTicketID, body.PartitionKey, body.MergedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, op)
}

// handleRevertMerge is POST /merges/:id/revert.
func (r *Router) handleRevertMerge(c *gin.Context) {
	mergeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: "invalid_merge_id", Message: err.Error()})
		return
	}

	var body struct {
		PartitionKey string  `json:"partitionKey" binding:"required"`
		RevertedBy   string  `json:"revertedBy" binding:"required"`
		Reason       *string `json:"reason,omitempty"`
		Force        bool    `json:"force"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: "invalid_request", Message: err.Error()})
		return
	}

	op, err := r.merge.RevertMerge(c.Request.Context(), mergeID, body.PartitionKey, body.RevertedBy, body.Reason, body.Force)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}
