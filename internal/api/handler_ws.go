package api

import (
	"github.com/gin-gonic/gin"
)

// DashboardWS handles GET /ws/dashboard: the live update channel.
// Connected viewers receive the combined dashboard + ERP queue snapshot
// on every broadcast pass, plus discrete alert events.
func (h *Handler) DashboardWS(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request)
}
