package routes

import (
	"tern/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// RegisterPlanRoutes registers the plan usage endpoint. Any member may
// look at the team's consumption.
func RegisterPlanRoutes(api *echo.Group, h *handlers.PlanHandler, db *gorm.DB) {
	api.GET("/plan/usage", h.GetUsage)
}
