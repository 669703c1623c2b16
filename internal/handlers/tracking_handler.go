package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tern/internal/api/middleware"
	"tern/internal/services"
	"tern/internal/utils"
	"tern/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

var trackingLog = logger.New("TRACKING_HANDLER")

// 🔍 TrackingHandler serves the public beacon endpoints and the
// authenticated analytics endpoints built on top of them.
type TrackingHandler struct {
	tracking  *services.TrackingService
	analytics *services.AnalyticsService
}

// 🆕 NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(tracking *services.TrackingService, analytics *services.AnalyticsService) *TrackingHandler {
	return &TrackingHandler{
		tracking:  tracking,
		analytics: analytics,
	}
}

// hitFrom collects the request facts a capture needs. The raw IP and UA
// are hashed and truncated downstream before anything is stored.
func (h *TrackingHandler) hitFrom(c echo.Context) *services.Hit {
	return &services.Hit{
		BeaconID:    c.Param("beacon"),
		RecipientID: c.QueryParam("r"),
		IP:          utils.GetIPAddress(c.Request()),
		UserAgent:   c.Request().UserAgent(),
	}
}

func servePixel(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Response().Header().Set("Pragma", "no-cache")
	c.Response().Header().Set("Expires", "0")
	return c.Blob(http.StatusOK, "image/gif", utils.TransparentGIF())
}

// validRedirectURL accepts relative paths and absolute http(s) URLs.
// Scheme-relative forms like //evil.example are rejected.
func validRedirectURL(raw string) bool {
	if raw == "" {
		return false
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// 👁️ HandleOpen handles open tracking
// @Summary Handle open tracking
// @Description Records an open and serves a 1x1 transparent GIF. The pixel
// @Description is served no matter what; a broken beacon never breaks mail
// @Description rendering and never reveals whether the beacon was known.
// @Produce image/gif
// @Param beacon path string true "Beacon ID"
// @Param r query string false "Recipient ID"
// @Success 200 {string} string "GIF image"
// @Router /t/open/{beacon} [get]
func (h *TrackingHandler) HandleOpen(c echo.Context) error {
	if err := h.tracking.CaptureOpen(c.Request().Context(), h.hitFrom(c)); err != nil {
		trackingLog.Warn("open capture failed: %v", err)
	}
	return servePixel(c)
}

// 🖱️ HandleClick handles click tracking
// @Summary Handle click tracking
// @Description Records a click and redirects to the target URL
// @Param beacon path string true "Beacon ID"
// @Param r query string false "Recipient ID"
// @Param url query string true "Redirect target"
// @Success 302 {string} string "Redirect"
// @Failure 400 {object} map[string]string "Missing or invalid url"
// @Router /t/click/{beacon} [get]
func (h *TrackingHandler) HandleClick(c echo.Context) error {
	target := c.QueryParam("url")
	if !validRedirectURL(target) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "missing or invalid redirect url",
		})
	}

	hit := h.hitFrom(c)
	hit.URL = target
	if err := h.tracking.CaptureClick(c.Request().Context(), hit); err != nil {
		// Still redirect even if tracking fails
		trackingLog.Warn("click capture failed: %v", err)
	}

	return c.Redirect(http.StatusFound, target)
}

const unsubscribeOKPage = `<!DOCTYPE html>
<html>
<head><title>Unsubscribed</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
	<h1>You're unsubscribed</h1>
	<p>You will no longer receive emails from this sender.</p>
</body>
</html>`

const unsubscribeErrorPage = `<!DOCTYPE html>
<html>
<head><title>Invalid link</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
	<h1>Invalid link</h1>
	<p>This unsubscribe link is invalid or has expired.</p>
</body>
</html>`

// ✉️ HandleUnsubscribe handles one-click unsubscribes
// @Summary Unsubscribe a recipient
// @Description Flips the contact behind the recipient to UNSUBSCRIBED and
// @Description renders a confirmation page
// @Produce html
// @Param beacon path string true "Beacon ID"
// @Param r query string true "Recipient ID"
// @Success 200 {string} string "Confirmation page"
// @Failure 400 {string} string "Invalid link page"
// @Router /t/unsubscribe/{beacon} [get]
func (h *TrackingHandler) HandleUnsubscribe(c echo.Context) error {
	if err := h.tracking.Unsubscribe(c.Request().Context(), h.hitFrom(c)); err != nil {
		trackingLog.Warn("unsubscribe failed: %v", err)
		// The page stays generic, the reason never leaks to the visitor
		return c.HTML(http.StatusBadRequest, unsubscribeErrorPage)
	}
	return c.HTML(http.StatusOK, unsubscribeOKPage)
}

// 📊 GetCampaignAnalytics returns fresh stats for a campaign
// @Summary Get campaign analytics
// @Description Recomputes and returns sent/opened/clicked counts and rates
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} models.CampaignStats
// @Failure 404 {object} map[string]string "Campaign not found"
// @Router /api/v1/analytics/campaigns/{id} [get]
func (h *TrackingHandler) GetCampaignAnalytics(c echo.Context) error {
	stats, err := h.analytics.RecomputeCampaignStats(c.Request().Context(), c.Param("id"))
	if err != nil || stats.TeamID != middleware.GetTeamID(c) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "campaign not found",
		})
	}
	return c.JSON(http.StatusOK, stats)
}

// 📈 GetTeamAnalytics returns fresh stats for the caller's team
// @Summary Get team analytics
// @Description Recomputes and returns team-wide engagement counters
// @Produce json
// @Success 200 {object} models.TeamStats
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/v1/analytics/team [get]
func (h *TrackingHandler) GetTeamAnalytics(c echo.Context) error {
	stats, err := h.analytics.RecomputeTeamStats(c.Request().Context(), middleware.GetTeamID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to compute team stats",
		})
	}
	return c.JSON(http.StatusOK, stats)
}

// 📅 GetEngagementTimeline returns per-day engagement for a campaign
// @Summary Get engagement timeline
// @Description Daily opens, clicks and unsubscribes over the requested window
// @Produce json
// @Param id path string true "Campaign ID"
// @Param days query int false "Window in days (default 30)"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/analytics/campaigns/{id}/timeline [get]
func (h *TrackingHandler) GetEngagementTimeline(c echo.Context) error {
	days, _ := strconv.Atoi(c.QueryParam("days"))
	if days < 1 {
		days = 30
	}

	points, err := h.analytics.EngagementTimeline(c.Request().Context(), middleware.GetTeamID(c), c.Param("id"), days)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "campaign not found",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"campaignId": c.Param("id"),
		"days":       days,
		"data":       points,
	})
}

func exportContentType(format string) string {
	if format == "xlsx" {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// 📤 ExportEngagement downloads the per-recipient engagement report
// @Summary Export engagement report
// @Description Streams the campaign engagement report as CSV or XLSX
// @Produce octet-stream
// @Param id path string true "Campaign ID"
// @Param format query string false "csv or xlsx (default csv)"
// @Success 200 {string} string "Report file"
// @Failure 400 {object} map[string]string "Unknown format"
// @Router /api/v1/analytics/campaigns/{id}/export [get]
func (h *TrackingHandler) ExportEngagement(c echo.Context) error {
	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "format must be csv or xlsx",
		})
	}

	data, err := h.analytics.ExportEngagement(c.Request().Context(), middleware.GetTeamID(c), c.Param("id"), format)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "campaign not found",
		})
	}

	filename := fmt.Sprintf("engagement-%s.%s", c.Param("id"), format)
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, exportContentType(format), data)
}

// ☁️ UploadEngagementExport stores the report and returns a signed URL
// @Summary Upload engagement report
// @Description Generates the report, uploads it to object storage and
// @Description returns a time-limited download URL
// @Produce json
// @Param id path string true "Campaign ID"
// @Param format query string false "csv or xlsx (default csv)"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Unknown format"
// @Router /api/v1/analytics/campaigns/{id}/export [post]
func (h *TrackingHandler) UploadEngagementExport(c echo.Context) error {
	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "format must be csv or xlsx",
		})
	}

	signedURL, err := h.analytics.UploadExport(c.Request().Context(), middleware.GetTeamID(c), c.Param("id"), format)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to upload report",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"url": signedURL,
	})
}
