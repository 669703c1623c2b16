package handlers

import (
	"net/http"
	"strings"

	"tern/internal/api/middleware"
	"tern/internal/config"
	"tern/internal/models"
	"tern/internal/services"
	"tern/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

var smtpHandlerLog = logger.New("SMTP_HANDLER")

// 📬 SMTPHandler manages sending accounts: creation with plan checks,
// connection tests, breaker resets and rotation previews.
type SMTPHandler struct {
	cfg   *config.Config
	smtp  *services.SMTPService
	plans *services.PlanService
}

func NewSMTPHandler(cfg *config.Config, smtp *services.SMTPService, plans *services.PlanService) *SMTPHandler {
	return &SMTPHandler{
		cfg:   cfg,
		smtp:  smtp,
		plans: plans,
	}
}

type CreateSMTPAccountRequest struct {
	Name          string `json:"name" validate:"required"`
	Host          string `json:"host" validate:"required"`
	Port          int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Username      string `json:"username" validate:"required"`
	Password      string `json:"password" validate:"required"`
	FromEmail     string `json:"fromEmail" validate:"omitempty,email"`
	FromName      string `json:"fromName"`
	RotationGroup string `json:"rotationGroup"`
	IsDefault     bool   `json:"isDefault"`
	MaxSendRate   int    `json:"maxSendRate"`
}

type SMTPTestRequest struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateAccount stores a new sending account.
// @Summary Create SMTP account
// @Description Verifies the connection, checks plan limits and stores the
// @Description account with its credential encrypted at rest
// @Tags smtp
// @Accept json
// @Produce json
// @Param request body CreateSMTPAccountRequest true "Account details"
// @Success 201 {object} models.SMTPAccount
// @Failure 400 {object} map[string]string "Validation or connection failure"
// @Failure 403 {object} map[string]string "Plan limit reached"
// @Router /api/v1/smtp-accounts [post]
func (h *SMTPHandler) CreateAccount(c echo.Context) error {
	var req CreateSMTPAccountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if req.Port == 0 {
		req.Port = 587
	}
	if req.MaxSendRate == 0 {
		req.MaxSendRate = h.cfg.SMTP.DefaultMaxSendRate
	}

	account := &models.SMTPAccount{
		Name:          req.Name,
		Host:          req.Host,
		Port:          req.Port,
		Username:      req.Username,
		Password:      req.Password,
		FromEmail:     req.FromEmail,
		FromName:      req.FromName,
		RotationGroup: req.RotationGroup,
		IsDefault:     req.IsDefault,
		IsActive:      true,
		MaxSendRate:   req.MaxSendRate,
		TeamID:        middleware.GetTeamID(c),
	}

	if err := h.smtp.Create(c.Request().Context(), account, h.plans); err != nil {
		if strings.Contains(err.Error(), "plan") {
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, account)
}

// TestCredentials checks a connection without storing anything.
// @Summary Test SMTP credentials
// @Description Opens a connection and authenticates with the given
// @Description credentials; nothing is persisted
// @Tags smtp
// @Accept json
// @Produce json
// @Param request body SMTPTestRequest true "Credentials"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Connection failed"
// @Router /api/v1/smtp-accounts/test [post]
func (h *SMTPHandler) TestCredentials(c echo.Context) error {
	var req SMTPTestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	account := &models.SMTPAccount{
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
	}

	if err := h.smtp.Client().TestConnection(c.Request().Context(), account); err != nil {
		smtpHandlerLog.Warn("credential test failed for %s@%s: %v", req.Username, req.Host, err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Connection successful"})
}

// TestAccount checks a stored account and records the outcome, so a failed
// test counts toward the breaker like a failed send.
// @Summary Test stored SMTP account
// @Description Tests the stored credentials; failures count toward the
// @Description account's failure breaker
// @Tags smtp
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Connection failed"
// @Failure 404 {object} map[string]string "Account not found"
// @Router /api/v1/smtp-accounts/{id}/test [post]
func (h *SMTPHandler) TestAccount(c echo.Context) error {
	err := h.smtp.Test(c.Request().Context(), middleware.GetTeamID(c), c.Param("id"))
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "smtp account not found"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Connection successful"})
}

// ResetBreaker re-enables a disabled account.
// @Summary Reset failure breaker
// @Description Clears the failure counter and re-activates the account
// @Tags smtp
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Account not found"
// @Router /api/v1/smtp-accounts/{id}/reset-breaker [post]
func (h *SMTPHandler) ResetBreaker(c echo.Context) error {
	if err := h.smtp.ResetBreaker(c.Request().Context(), middleware.GetTeamID(c), c.Param("id")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "smtp account not found"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Account re-enabled"})
}

// RotationPreview shows which account the rotation would pick right now.
// @Summary Preview rotation pick
// @Description Runs the selection rules without sending anything
// @Tags smtp
// @Produce json
// @Param group query string false "Rotation group"
// @Success 200 {object} models.SMTPAccount
// @Failure 404 {object} map[string]string "No active accounts"
// @Router /api/v1/smtp-accounts/rotation-preview [get]
func (h *SMTPHandler) RotationPreview(c echo.Context) error {
	account, err := h.smtp.GetForSending(c.Request().Context(), middleware.GetTeamID(c), nil, c.QueryParam("group"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	// Password is json:"-" but blank it before returning anyway
	account.Password = ""
	return c.JSON(http.StatusOK, account)
}
