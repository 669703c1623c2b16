package routes

import (
	"tern/internal/api/middleware"
	"tern/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// RegisterSMTPRoutes registers SMTP account creation and diagnostics.
// Creation lives here rather than in the registry so plan limits and
// connection checks run before the row exists.
func RegisterSMTPRoutes(api *echo.Group, h *handlers.SMTPHandler, db *gorm.DB) {
	smtp := api.Group("/smtp-accounts")

	write := middleware.RequirePermissions(db, "smtp_accounts:write")
	smtp.POST("", h.CreateAccount, write)
	smtp.POST("/test", h.TestCredentials, write)
	smtp.POST("/:id/test", h.TestAccount, write)
	smtp.POST("/:id/reset-breaker", h.ResetBreaker, write)

	smtp.GET("/rotation-preview", h.RotationPreview,
		middleware.RequirePermissions(db, "smtp_accounts:read"))
}
