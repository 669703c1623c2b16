package routes

import (
	"tern/internal/api/middleware"
	"tern/internal/handlers"
	"tern/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func RegisterUploadRoutes(api *echo.Group, h *handlers.UploadHandler, db *gorm.DB) {
	log := logger.New("UPLOAD_ROUTES")

	fileGroup := api.Group("/files")
	fileGroup.POST("/upload", h.UploadFile, middleware.RequirePermissions(db, "files:write"))

	log.Success("Upload routes initialized successfully")
}
