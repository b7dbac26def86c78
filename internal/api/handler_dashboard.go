package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"production-dashboard-backend/internal/erp"
	"production-dashboard-backend/internal/sync"
)

// GetDashboard handles GET /api/dashboard: the current per-location
// machine snapshot with job progress and ERP metadata.
func (h *Handler) GetDashboard(c *gin.Context) {
	locations, err := h.store.DashboardSnapshot(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to build dashboard snapshot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": locations})
}

// GetJobQueue handles GET /api/job_queue: the active (non-completed) ERP
// work order queue.
func (h *Handler) GetJobQueue(c *gin.Context) {
	orders := h.erp.ListPendingWorkOrders(c.Request.Context())

	queue := make([]sync.QueueEntry, 0, len(orders))
	for _, entry := range sync.QueueEntries(orders) {
		if entry.Status == erp.StatusCompleted {
			continue
		}
		queue = append(queue, entry)
	}
	c.JSON(http.StatusOK, gin.H{"queue": queue})
}

// GetAdminWorkOrders handles GET /api/admin/work_orders: the unfiltered
// ERP work order list for the admin view.
func (h *Handler) GetAdminWorkOrders(c *gin.Context) {
	orders := h.erp.ListAllWorkOrders(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"work_orders": sync.QueueEntries(orders)})
}
