package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"production-dashboard-backend/config"
	"production-dashboard-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, serverCfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(serverCfg.RateLimitPerSec), serverCfg.RateLimitBurst)

	cacheTTL := time.Duration(serverCfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	// Live update channel; not rate limited, one upgrade per viewer.
	r.GET("/ws/dashboard", handler.DashboardWS)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Read-only dashboard views get a short cache: the broadcast loop
		// is the fresh path, these endpoints serve the initial paint.
		api.GET("/dashboard", caching, handler.GetDashboard)
		api.GET("/job_queue", caching, handler.GetJobQueue)
		api.GET("/admin/work_orders", handler.GetAdminWorkOrders)
		api.GET("/production_logs", caching, handler.GetProductionLogs)

		api.POST("/machine/start", handler.StartMachine)
		api.POST("/machine/pause", handler.PauseMachine)
		api.POST("/machine/stop", handler.StopMachine)
		api.POST("/machine/rename", handler.RenameMachine)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
