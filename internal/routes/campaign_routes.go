package routes

import (
	"tern/internal/api/middleware"
	"tern/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// 🚀 RegisterCampaignRoutes registers the campaign lifecycle endpoints.
// Plain CRUD lives in the registry; everything here changes send state.
func RegisterCampaignRoutes(api *echo.Group, h *handlers.CampaignHandler, db *gorm.DB) {
	campaigns := api.Group("/campaigns")

	write := middleware.RequirePermissions(db, "campaigns:write")
	campaigns.POST("/:id/activate", h.Activate, write)
	campaigns.POST("/:id/pause", h.Pause, write)
	campaigns.POST("/:id/test-send", h.TestSend, write)
	campaigns.POST("/:id/process", h.ProcessNow, write)

	campaigns.GET("/:id/stats", h.Stats, middleware.RequirePermissions(db, "campaigns:read"))
}
