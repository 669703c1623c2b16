package routes

import (
	"tern/internal/api/middleware"
	"tern/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// RegisterDeliverabilityRoutes registers on-demand domain and email checks.
// Past results are readable through the registry's checks endpoints.
func RegisterDeliverabilityRoutes(api *echo.Group, h *handlers.DeliverabilityHandler, db *gorm.DB) {
	deliverability := api.Group("/deliverability")
	deliverability.Use(middleware.RequirePermissions(db, "checks:write"))

	deliverability.POST("/domains", h.CheckDomain)
	deliverability.POST("/emails", h.ValidateEmail)
}
