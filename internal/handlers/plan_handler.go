package handlers

import (
	"net/http"

	"tern/internal/api/middleware"
	"tern/internal/services"
	"tern/internal/utils"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// 📊 PlanHandler exposes the team's plan caps and current consumption.
type PlanHandler struct {
	db    *gorm.DB
	plans *services.PlanService
	redis *utils.RedisClient
}

func NewPlanHandler(db *gorm.DB, plans *services.PlanService, redis *utils.RedisClient) *PlanHandler {
	return &PlanHandler{
		db:    db,
		plans: plans,
		redis: redis,
	}
}

// GetUsage returns every plan cap next to what the team has used.
// @Summary Get plan usage
// @Description Shows the team's tier, its limits and current counts
// @Tags plan
// @Produce json
// @Success 200 {object} services.PlanUsage
// @Failure 404 {object} map[string]string "Team not found"
// @Router /api/v1/plan/usage [get]
func (h *PlanHandler) GetUsage(c echo.Context) error {
	usage, err := h.plans.Usage(c.Request().Context(), middleware.GetTeamID(c))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "team not found"})
	}
	return c.JSON(http.StatusOK, usage)
}
