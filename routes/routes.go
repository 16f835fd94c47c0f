package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"marketpulse-backend/config"
	"marketpulse-backend/controllers"
	"marketpulse-backend/middleware"
	"marketpulse-backend/scheduler"
	"marketpulse-backend/services/alerts"
	"marketpulse-backend/services/archive"
	"marketpulse-backend/services/marketdata"
	"marketpulse-backend/services/realtime"
)

// Dependencies carries the constructed services the routes wire up
type Dependencies struct {
	DB        *gorm.DB
	Config    *config.Config
	Chain     *marketdata.Chain
	Repo      alerts.Repository
	Engine    *alerts.Engine
	Scheduler *scheduler.Scheduler
	Hub       *realtime.Hub
	Archive   *archive.MongoArchive
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps *Dependencies) {
	marketController := controllers.NewMarketController(deps.Chain)
	alertController := controllers.NewAlertController(deps.DB, deps.Repo, deps.Engine, deps.Scheduler, deps.Archive)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Market data routes
		market := api.Group("/market")
		{
			market.GET("/:symbol/quote", marketController.GetQuote)
			market.GET("/:symbol/history", marketController.GetHistory)
			market.GET("/:symbol/indicators", marketController.GetIndicators)
		}

		// Alert routes
		alertGroup := api.Group("/alerts")
		{
			alertGroup.GET("", alertController.GetAlerts)
			alertGroup.POST("", alertController.CreateAlert)
			alertGroup.GET("/:id", alertController.GetAlert)
			alertGroup.PUT("/:id", alertController.UpdateAlert)
			alertGroup.DELETE("/:id", alertController.DeleteAlert)
			alertGroup.POST("/:id/reset", alertController.ResetAlert)
			alertGroup.POST("/:id/test", alertController.TestAlert)
		}

		// Notification routes
		notifications := api.Group("/notifications")
		{
			notifications.GET("", alertController.GetNotifications)
			notifications.GET("/archive", alertController.GetArchivedNotifications)
			notifications.POST("/:id/read", alertController.MarkNotificationRead)
		}

		// Engine control routes, guarded when a control secret is set
		engine := api.Group("/engine")
		engine.Use(middleware.ControlAuthMiddleware(deps.Config.ControlJWTSecret))
		{
			engine.POST("/start", alertController.StartScheduler)
			engine.POST("/stop", alertController.StopScheduler)
			engine.GET("/status", alertController.GetEngineStatus)
			engine.POST("/check", alertController.ForceCheck)
		}
	}

	// WebSocket stream of notifications and quote updates
	router.GET("/ws", func(c *gin.Context) {
		deps.Hub.ServeWS(c.Writer, c.Request)
	})
}
