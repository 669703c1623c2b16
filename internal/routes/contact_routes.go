package routes

import (
	"tern/internal/api/middleware"
	"tern/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// RegisterContactRoutes registers imports, exports and unsubscribes.
func RegisterContactRoutes(api *echo.Group, h *handlers.ContactHandler, db *gorm.DB) {
	write := middleware.RequirePermissions(db, "contacts:write")

	api.POST("/imports/contacts", h.StartImport, write)
	api.POST("/contacts/:id/unsubscribe", h.Unsubscribe, write)

	api.GET("/mailing-lists/:id/export", h.ExportList,
		middleware.RequirePermissions(db, "contacts:read"))
}
