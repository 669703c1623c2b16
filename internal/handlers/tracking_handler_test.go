package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"tern/internal/events"
	"tern/internal/models"
	"tern/internal/services"
	"tern/internal/utils"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tern.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Team{}, &models.MailingList{}, &models.Contact{},
		&models.Campaign{}, &models.Message{}, &models.MessageRecipient{},
		&models.MessageOpen{}, &models.MessageClick{},
		&models.CampaignStats{}, &models.TeamStats{},
		&models.SMTPAccount{}, &models.DomainCheck{}, &models.EmailCheck{},
	))
	t.Cleanup(events.Reset)
	return db
}

type beaconFixture struct {
	team      *models.Team
	campaign  *models.Campaign
	message   *models.Message
	contact   *models.Contact
	recipient *models.MessageRecipient
}

func seedBeacon(t *testing.T, db *gorm.DB) *beaconFixture {
	t.Helper()
	team := &models.Team{Name: "Acme", PlanTier: models.PlanTierPremium}
	require.NoError(t, db.Create(team).Error)

	list := &models.MailingList{}
	require.NoError(t, db.First(list, "team_id = ?", team.ID).Error)

	contact := &models.Contact{Email: "reader@example.com", FirstName: "Reader", ListID: &list.ID, TeamID: team.ID}
	require.NoError(t, db.Create(contact).Error)

	campaign := &models.Campaign{Name: "Launch", Status: models.CampaignStatusActive, ListID: &list.ID, TeamID: team.ID}
	require.NoError(t, db.Create(campaign).Error)

	message := &models.Message{
		CampaignID: campaign.ID,
		TeamID:     team.ID,
		Subject:    "Hello",
		BodyHTML:   "<html><body><p>Hi</p></body></html>",
		Status:     models.MessageStatusSent,
	}
	require.NoError(t, db.Create(message).Error)

	recipient := &models.MessageRecipient{
		MessageID: message.ID,
		ContactID: contact.ID,
		Email:     contact.Email,
		Status:    models.RecipientStatusSent,
	}
	require.NoError(t, db.Create(recipient).Error)

	return &beaconFixture{team: team, campaign: campaign, message: message, contact: contact, recipient: recipient}
}

func newTrackingHandler(db *gorm.DB) *TrackingHandler {
	return NewTrackingHandler(services.NewTrackingService(db), services.NewAnalyticsService(db, nil))
}

func beaconContext(method, target, beaconID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("beacon")
	c.SetParamValues(beaconID)
	return c, rec
}

func TestHandleOpenServesPixelAndRecords(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	c, rec := beaconContext(http.MethodGet, "/t/open/"+fx.message.BeaconID+"?r="+fx.recipient.ID, fx.message.BeaconID)
	require.NoError(t, h.HandleOpen(c))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/gif", rec.Header().Get(echo.HeaderContentType))
	require.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	require.Equal(t, utils.TransparentGIF(), rec.Body.Bytes())

	open := &models.MessageOpen{}
	require.NoError(t, db.First(open, "message_id = ?", fx.message.ID).Error)
	require.Equal(t, utils.HashIP("203.0.113.7"), open.IPHash)
	require.Equal(t, "Chrome", open.UserAgentFamily)

	stored := &models.MessageRecipient{}
	require.NoError(t, db.First(stored, "id = ?", fx.recipient.ID).Error)
	require.Equal(t, models.RecipientStatusOpened, stored.Status)
}

func TestHandleOpenUnknownBeaconLooksIdentical(t *testing.T) {
	db := testDB(t)
	h := newTrackingHandler(db)

	c, rec := beaconContext(http.MethodGet, "/t/open/nope", "nope")
	require.NoError(t, h.HandleOpen(c))

	// A probe with a fabricated beacon gets the same pixel as a real one.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/gif", rec.Header().Get(echo.HeaderContentType))
	require.Equal(t, utils.TransparentGIF(), rec.Body.Bytes())

	var count int64
	require.NoError(t, db.Model(&models.MessageOpen{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestHandleClickRedirectsAndRecords(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	target := "https://acme.io/launch"
	c, rec := beaconContext(http.MethodGet, "/t/click/"+fx.message.BeaconID+"?r="+fx.recipient.ID+"&url=https%3A%2F%2Facme.io%2Flaunch", fx.message.BeaconID)
	require.NoError(t, h.HandleClick(c))

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, target, rec.Header().Get(echo.HeaderLocation))

	click := &models.MessageClick{}
	require.NoError(t, db.First(click, "message_id = ?", fx.message.ID).Error)
	require.Equal(t, target, click.URL)

	stored := &models.MessageRecipient{}
	require.NoError(t, db.First(stored, "id = ?", fx.recipient.ID).Error)
	require.Equal(t, models.RecipientStatusClicked, stored.Status)
}

func TestHandleClickAllowsRelativeTargets(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	c, rec := beaconContext(http.MethodGet, "/t/click/"+fx.message.BeaconID+"?url=%2Fdocs", fx.message.BeaconID)
	require.NoError(t, h.HandleClick(c))

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/docs", rec.Header().Get(echo.HeaderLocation))
}

func TestHandleClickRejectsBadTargets(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	tests := []struct {
		name  string
		query string
	}{
		{"missing url", ""},
		{"scheme relative", "?url=%2F%2Fevil.example"},
		{"javascript scheme", "?url=javascript%3Aalert(1)"},
		{"ftp scheme", "?url=ftp%3A%2F%2Ffiles.example"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := beaconContext(http.MethodGet, "/t/click/"+fx.message.BeaconID+tc.query, fx.message.BeaconID)
			require.NoError(t, h.HandleClick(c))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, "missing or invalid redirect url", body["error"])
		})
	}

	var count int64
	require.NoError(t, db.Model(&models.MessageClick{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestHandleUnsubscribe(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	c, rec := beaconContext(http.MethodGet, "/t/unsubscribe/"+fx.message.BeaconID+"?r="+fx.recipient.ID, fx.message.BeaconID)
	require.NoError(t, h.HandleUnsubscribe(c))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "unsubscribed")

	stored := &models.Contact{}
	require.NoError(t, db.First(stored, "id = ?", fx.contact.ID).Error)
	require.Equal(t, models.SubscriberStatusUnsubscribed, stored.Status)
}

func TestHandleUnsubscribeWithoutRecipientFails(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	c, rec := beaconContext(http.MethodGet, "/t/unsubscribe/"+fx.message.BeaconID, fx.message.BeaconID)
	require.NoError(t, h.HandleUnsubscribe(c))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid link")

	stored := &models.Contact{}
	require.NoError(t, db.First(stored, "id = ?", fx.contact.ID).Error)
	require.Equal(t, models.SubscriberStatusActive, stored.Status)
}

func analyticsContext(target, campaignID, teamID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set("teamID", teamID)
	if campaignID != "" {
		c.SetParamNames("id")
		c.SetParamValues(campaignID)
	}
	return c, rec
}

func TestGetCampaignAnalytics(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	c, rec := analyticsContext("/api/v1/analytics/campaigns/"+fx.campaign.ID, fx.campaign.ID, fx.team.ID)
	require.NoError(t, h.GetCampaignAnalytics(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.CampaignStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.TotalRecipients)
	require.Equal(t, 1, stats.Sent)
}

func TestGetCampaignAnalyticsScopedToTeam(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	other := &models.Team{Name: "Globex", PlanTier: models.PlanTierFree}
	require.NoError(t, db.Create(other).Error)
	h := newTrackingHandler(db)

	c, rec := analyticsContext("/api/v1/analytics/campaigns/"+fx.campaign.ID, fx.campaign.ID, other.ID)
	require.NoError(t, h.GetCampaignAnalytics(c))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "campaign not found", body["error"])
}

func TestGetTeamAnalytics(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	c, rec := analyticsContext("/api/v1/analytics/team", "", fx.team.ID)
	require.NoError(t, h.GetTeamAnalytics(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.TeamStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.TotalCampaigns)
	require.Equal(t, 1, stats.TotalMessages)
}

func TestGetEngagementTimeline(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	require.NoError(t, db.Create(&models.MessageOpen{
		MessageID: fx.message.ID,
		TeamID:    fx.team.ID,
		BeaconID:  fx.message.BeaconID,
		IPHash:    "deadbeef",
	}).Error)

	c, rec := analyticsContext("/api/v1/analytics/campaigns/"+fx.campaign.ID+"/timeline?days=7", fx.campaign.ID, fx.team.ID)
	require.NoError(t, h.GetEngagementTimeline(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		CampaignID string                   `json:"campaignId"`
		Days       int                      `json:"days"`
		Data       []services.TimelinePoint `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, fx.campaign.ID, body.CampaignID)
	require.Equal(t, 7, body.Days)
	require.Len(t, body.Data, 1)
	require.Equal(t, 1, body.Data[0].Opens)
}

func TestExportEngagementDownloadsCSV(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	c, rec := analyticsContext("/api/v1/analytics/campaigns/"+fx.campaign.ID+"/export", fx.campaign.ID, fx.team.ID)
	require.NoError(t, h.ExportEngagement(c))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get(echo.HeaderContentType))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "engagement-"+fx.campaign.ID+".csv")

	rows, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"Timestamp", "Event", "Email", "URL", "Browser"}, rows[0])
}

func TestExportEngagementRejectsUnknownFormat(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	c, rec := analyticsContext("/api/v1/analytics/campaigns/"+fx.campaign.ID+"/export?format=pdf", fx.campaign.ID, fx.team.ID)
	require.NoError(t, h.ExportEngagement(c))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "format must be csv or xlsx", body["error"])
}

func TestUploadEngagementExportWithoutStorage(t *testing.T) {
	db := testDB(t)
	fx := seedBeacon(t, db)
	h := newTrackingHandler(db)

	c, rec := analyticsContext("/api/v1/analytics/campaigns/"+fx.campaign.ID+"/export", fx.campaign.ID, fx.team.ID)
	require.NoError(t, h.UploadEngagementExport(c))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "failed to upload report", body["error"])
}
