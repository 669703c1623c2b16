package handlers

import (
	"net/http"

	"tern/internal/api/middleware"
	"tern/internal/services"

	"github.com/labstack/echo/v4"
)

// 🔍 DeliverabilityHandler runs on-demand domain and address checks.
type DeliverabilityHandler struct {
	deliverability *services.DeliverabilityService
}

func NewDeliverabilityHandler(deliverability *services.DeliverabilityService) *DeliverabilityHandler {
	return &DeliverabilityHandler{deliverability: deliverability}
}

type DomainCheckRequest struct {
	Domain string `json:"domain" validate:"required"`
}

type EmailCheckRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CheckDomain verifies SPF, DKIM and DMARC records for a sending domain.
// @Summary Check a sending domain
// @Description Looks up SPF, DKIM and DMARC and stores the result
// @Tags deliverability
// @Accept json
// @Produce json
// @Param request body DomainCheckRequest true "Domain to check"
// @Success 200 {object} models.DomainCheck
// @Failure 400 {object} map[string]string "Invalid domain"
// @Router /api/v1/deliverability/domains [post]
func (h *DeliverabilityHandler) CheckDomain(c echo.Context) error {
	var req DomainCheckRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	check, err := h.deliverability.CheckDomain(c.Request().Context(), middleware.GetTeamID(c), req.Domain)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, check)
}

// ValidateEmail checks a single address for syntax, MX and risk signals.
// @Summary Validate an email address
// @Tags deliverability
// @Accept json
// @Produce json
// @Param request body EmailCheckRequest true "Address to validate"
// @Success 200 {object} models.EmailCheck
// @Failure 400 {object} map[string]string "Invalid address"
// @Router /api/v1/deliverability/emails [post]
func (h *DeliverabilityHandler) ValidateEmail(c echo.Context) error {
	var req EmailCheckRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	check, err := h.deliverability.ValidateEmail(c.Request().Context(), middleware.GetTeamID(c), req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, check)
}
