package handlers

import (
	"net/http"

	"tern/internal/api/middleware"
	"tern/internal/services"

	"github.com/labstack/echo/v4"
)

// 🚨 AlertHandler lets operators triage breaker trips and other incidents.
type AlertHandler struct {
	alerts *services.AlertService
}

func NewAlertHandler(alerts *services.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// ListUnresolved returns the team's open alerts.
// @Summary List unresolved alerts
// @Tags alerts
// @Produce json
// @Success 200 {array} models.Alert
// @Router /api/v1/alerts/unresolved [get]
func (h *AlertHandler) ListUnresolved(c echo.Context) error {
	alerts, err := h.alerts.List(c.Request().Context(), middleware.GetTeamID(c), true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list alerts"})
	}
	return c.JSON(http.StatusOK, alerts)
}

// Resolve closes an alert.
// @Summary Resolve an alert
// @Tags alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} models.Alert
// @Failure 404 {object} map[string]string "Alert not found"
// @Router /api/v1/alerts/{id}/resolve [post]
func (h *AlertHandler) Resolve(c echo.Context) error {
	alert, err := h.alerts.Resolve(c.Request().Context(), middleware.GetTeamID(c), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "alert not found"})
	}
	return c.JSON(http.StatusOK, alert)
}
