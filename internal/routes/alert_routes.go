package routes

import (
	"tern/internal/api/middleware"
	"tern/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// RegisterAlertRoutes registers alert triage endpoints.
func RegisterAlertRoutes(api *echo.Group, h *handlers.AlertHandler, db *gorm.DB) {
	alerts := api.Group("/alerts")

	alerts.GET("/unresolved", h.ListUnresolved, middleware.RequirePermissions(db, "alerts:read"))
	alerts.POST("/:id/resolve", h.Resolve, middleware.RequirePermissions(db, "alerts:write"))
}
