package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultLogLimit = 50

// GetProductionLogs handles GET /api/production_logs?limit=N: the most
// recent log rows, newest first.
func (h *Handler) GetProductionLogs(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	logs, err := h.store.RecentProductionLogs(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve production logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
