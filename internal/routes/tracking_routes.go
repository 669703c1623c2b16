package routes

import (
	"tern/internal/api/middleware"
	"tern/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// 📊 RegisterBeaconRoutes registers the public tracking endpoints.
// No auth: these are opened by mail clients.
func RegisterBeaconRoutes(e *echo.Echo, h *handlers.TrackingHandler, rateLimit echo.MiddlewareFunc) {
	trackGroup := e.Group("/t", rateLimit)
	trackGroup.GET("/open/:beacon", h.HandleOpen)
	trackGroup.GET("/click/:beacon", h.HandleClick)
	trackGroup.GET("/unsubscribe/:beacon", h.HandleUnsubscribe)
}

// RegisterAnalyticsRoutes registers the authenticated analytics endpoints.
func RegisterAnalyticsRoutes(api *echo.Group, h *handlers.TrackingHandler, db *gorm.DB) {
	analyticsGroup := api.Group("/analytics")
	analyticsGroup.Use(middleware.RequirePermissions(db, "analytics:read"))

	// Campaign and team rollups
	analyticsGroup.GET("/campaigns/:id", h.GetCampaignAnalytics)
	analyticsGroup.GET("/team", h.GetTeamAnalytics)

	// Timeline and exports
	analyticsGroup.GET("/campaigns/:id/timeline", h.GetEngagementTimeline)
	analyticsGroup.GET("/campaigns/:id/export", h.ExportEngagement)
	analyticsGroup.POST("/campaigns/:id/export", h.UploadEngagementExport)
}
