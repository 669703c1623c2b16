package handlers

import (
	"errors"
	"net/http"
	"time"

	"tern/internal/api/middleware"
	"tern/internal/services"
	"tern/internal/tasks"
	"tern/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

var campaignHandlerLog = logger.New("CAMPAIGN_HANDLER")

// 🚀 CampaignHandler exposes the campaign lifecycle operations that go
// beyond plain CRUD: activation, pausing, test sends and manual runs.
type CampaignHandler struct {
	campaigns *services.CampaignService
	pipeline  *services.SendPipeline
	analytics *services.AnalyticsService
	tasks     *tasks.TaskClient
}

func NewCampaignHandler(campaigns *services.CampaignService, pipeline *services.SendPipeline, analytics *services.AnalyticsService, client *tasks.TaskClient) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		pipeline:  pipeline,
		analytics: analytics,
		tasks:     client,
	}
}

type TestSendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func campaignError(c echo.Context, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "campaign not found"})
	}
	return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// Activate moves a campaign into the send pipeline.
// @Summary Activate campaign
// @Description Expands recipients, checks the plan cap and queues the first run
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} models.Campaign
// @Failure 400 {object} map[string]string "Campaign not activatable"
// @Failure 404 {object} map[string]string "Campaign not found"
// @Router /api/v1/campaigns/{id}/activate [post]
func (h *CampaignHandler) Activate(c echo.Context) error {
	campaign, err := h.campaigns.Activate(c.Request().Context(), middleware.GetTeamID(c), c.Param("id"))
	if err != nil {
		return campaignError(c, err)
	}
	return c.JSON(http.StatusOK, campaign)
}

// Pause takes a campaign out of the pipeline.
// @Summary Pause campaign
// @Description Stops new batches; an in-flight batch finishes
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} models.Campaign
// @Failure 400 {object} map[string]string "Campaign not active"
// @Failure 404 {object} map[string]string "Campaign not found"
// @Router /api/v1/campaigns/{id}/pause [post]
func (h *CampaignHandler) Pause(c echo.Context) error {
	campaign, err := h.campaigns.Pause(c.Request().Context(), middleware.GetTeamID(c), c.Param("id"))
	if err != nil {
		return campaignError(c, err)
	}
	return c.JSON(http.StatusOK, campaign)
}

// TestSend sends the campaign message to a single address without touching
// recipient state or stats.
// @Summary Send a test email
// @Description Sends the campaign message to one address through the normal
// @Description SMTP rotation; nothing is recorded against the campaign
// @Tags campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body TestSendRequest true "Target address"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Send failed"
// @Failure 404 {object} map[string]string "Campaign not found"
// @Router /api/v1/campaigns/{id}/test-send [post]
func (h *CampaignHandler) TestSend(c echo.Context) error {
	var req TestSendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.pipeline.SendTest(c.Request().Context(), middleware.GetTeamID(c), c.Param("id"), req.Email); err != nil {
		return campaignError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Test email sent to " + req.Email,
	})
}

// ProcessNow queues an immediate pipeline pass for the campaign.
// @Summary Run campaign now
// @Description Enqueues a pipeline pass without waiting for the scheduler
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 202 {object} map[string]string
// @Failure 404 {object} map[string]string "Campaign not found"
// @Router /api/v1/campaigns/{id}/process [post]
func (h *CampaignHandler) ProcessNow(c echo.Context) error {
	campaign, err := h.campaigns.Get(c.Request().Context(), middleware.GetTeamID(c), c.Param("id"))
	if err != nil {
		return campaignError(c, err)
	}

	if err := h.tasks.EnqueueCampaignTask(c.Request().Context(), campaign.ID, campaign.BatchSize, time.Now()); err != nil {
		campaignHandlerLog.Error("failed to enqueue campaign %s: %v", campaign.ID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue campaign"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Campaign queued for processing",
	})
}

// Stats returns fresh engagement stats for a campaign.
// @Summary Get campaign stats
// @Description Recomputes and returns the campaign's engagement counters
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} models.CampaignStats
// @Failure 404 {object} map[string]string "Campaign not found"
// @Router /api/v1/campaigns/{id}/stats [get]
func (h *CampaignHandler) Stats(c echo.Context) error {
	if _, err := h.campaigns.Get(c.Request().Context(), middleware.GetTeamID(c), c.Param("id")); err != nil {
		return campaignError(c, err)
	}

	stats, err := h.analytics.RecomputeCampaignStats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to compute stats"})
	}
	return c.JSON(http.StatusOK, stats)
}
