package handlers

import (
	"net/http"
	"time"

	"tern/internal/api/middleware"
	"tern/internal/models"
	"tern/internal/services"
	"tern/internal/utils/logger"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

var uploadLog = logger.New("UPLOAD_HANDLER")

// 📁 UploadHandler accepts multipart uploads and records them as File rows.
type UploadHandler struct {
	db      *gorm.DB
	storage *services.StorageService
}

func NewUploadHandler(db *gorm.DB, storage *services.StorageService) *UploadHandler {
	return &UploadHandler{
		db:      db,
		storage: storage,
	}
}

// UploadFile stores a multipart file and returns the created record.
// @Summary Upload a file
// @Description Stores the file in the bucket and registers it for imports
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} models.File
// @Failure 400 {object} map[string]string "No file provided"
// @Router /api/v1/files/upload [post]
func (h *UploadHandler) UploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No file provided"})
	}

	key, err := h.storage.UploadFile(c.Request().Context(), file, types.ObjectCannedACLPrivate)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to upload file"})
	}

	record := &models.File{
		Name:        file.Filename,
		Path:        key,
		Size:        file.Size,
		ContentType: file.Header.Get("Content-Type"),
		TeamID:      middleware.GetTeamID(c),
	}
	if err := h.db.Create(record).Error; err != nil {
		uploadLog.Error("failed to record upload %s: %v", key, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to record file"})
	}

	uploadLog.Success("File uploaded: %s (%d bytes)", file.Filename, file.Size)

	// A short-lived link so the client can use the file immediately
	if url, err := h.storage.GetSignedURL(c.Request().Context(), key, 15*time.Minute); err == nil {
		record.URL = url
	}
	return c.JSON(http.StatusCreated, record)
}
