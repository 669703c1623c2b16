package handlers

import (
	"fmt"
	"net/http"

	"tern/internal/api/middleware"
	"tern/internal/models"
	"tern/internal/services"
	"tern/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var contactHandlerLog = logger.New("CONTACT_HANDLER")

// 👥 ContactHandler covers the contact flows that outgrow plain CRUD:
// file imports, list exports and manual unsubscribes.
type ContactHandler struct {
	db       *gorm.DB
	contacts *services.ContactService
}

func NewContactHandler(db *gorm.DB, contacts *services.ContactService) *ContactHandler {
	return &ContactHandler{
		db:       db,
		contacts: contacts,
	}
}

type ContactImportRequest struct {
	FileID    string         `json:"fileId" validate:"required"`
	ListID    string         `json:"listId" validate:"required"`
	FieldsMap datatypes.JSON `json:"fieldsMap"`
}

// StartImport queues a contact file import.
// @Summary Import contacts from a file
// @Description Creates an import job for an uploaded file; processing runs
// @Description in the background and progress is visible on the import record
// @Tags contacts
// @Accept json
// @Produce json
// @Param request body ContactImportRequest true "Import details"
// @Success 202 {object} models.ContactImport
// @Failure 400 {object} map[string]string "Unknown file or list"
// @Router /api/v1/imports/contacts [post]
func (h *ContactHandler) StartImport(c echo.Context) error {
	var req ContactImportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	teamID := middleware.GetTeamID(c)

	// Both references must belong to the caller's team
	var list models.MailingList
	if err := h.db.Where("id = ? AND team_id = ?", req.ListID, teamID).First(&list).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "mailing list not found"})
	}
	var file models.File
	if err := h.db.Where("id = ? AND team_id = ?", req.FileID, teamID).First(&file).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file not found"})
	}

	imp := &models.ContactImport{
		TeamID:    teamID,
		ListID:    list.ID,
		FileID:    &file.ID,
		Status:    models.ImportStatusPending,
		FieldsMap: req.FieldsMap,
	}

	// AfterCreate emits the event that enqueues background processing
	if err := h.db.Create(imp).Error; err != nil {
		contactHandlerLog.Error("failed to create contact import: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create import"})
	}

	return c.JSON(http.StatusAccepted, imp)
}

// ExportList downloads a mailing list's contacts.
// @Summary Export mailing list
// @Description Streams the list's contacts as CSV or XLSX
// @Tags contacts
// @Produce octet-stream
// @Param id path string true "List ID"
// @Param format query string false "csv or xlsx (default csv)"
// @Success 200 {string} string "Export file"
// @Failure 400 {object} map[string]string "Unknown format"
// @Failure 404 {object} map[string]string "List not found"
// @Router /api/v1/mailing-lists/{id}/export [get]
func (h *ContactHandler) ExportList(c echo.Context) error {
	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}

	teamID := middleware.GetTeamID(c)
	listID := c.Param("id")

	var data []byte
	var err error
	switch format {
	case "csv":
		data, err = h.contacts.ExportCSV(c.Request().Context(), teamID, listID)
	case "xlsx":
		data, err = h.contacts.ExportXLSX(c.Request().Context(), teamID, listID)
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "format must be csv or xlsx"})
	}
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "mailing list not found"})
	}

	filename := fmt.Sprintf("contacts-%s.%s", listID, format)
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, exportContentType(format), data)
}

// Unsubscribe flips a contact to UNSUBSCRIBED on behalf of an operator.
// @Summary Unsubscribe a contact
// @Description Marks the contact so future sends skip it
// @Tags contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Contact not found"
// @Router /api/v1/contacts/{id}/unsubscribe [post]
func (h *ContactHandler) Unsubscribe(c echo.Context) error {
	if err := h.contacts.UnsubscribeContact(c.Request().Context(), middleware.GetTeamID(c), c.Param("id")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "contact not found"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Contact unsubscribed"})
}
