package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"tern/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func recipientByEmail(t *testing.T, db *gorm.DB, email string) *models.MessageRecipient {
	t.Helper()
	r := &models.MessageRecipient{}
	require.NoError(t, db.First(r, "email = ?", email).Error)
	return r
}

func setRecipientStatus(t *testing.T, db *gorm.DB, id string, status models.RecipientStatus) {
	t.Helper()
	require.NoError(t, db.Model(&models.MessageRecipient{}).Where("id = ?", id).Update("status", status).Error)
}

func seedOpen(t *testing.T, db *gorm.DB, fx *sendFixture, recipientID *string) {
	t.Helper()
	require.NoError(t, db.Create(&models.MessageOpen{
		MessageID:       fx.message.ID,
		RecipientID:     recipientID,
		TeamID:          fx.team.ID,
		BeaconID:        fx.message.BeaconID,
		IPHash:          "deadbeef",
		UserAgentFamily: "Chrome",
	}).Error)
}

func seedClick(t *testing.T, db *gorm.DB, fx *sendFixture, recipientID *string, url string) {
	t.Helper()
	require.NoError(t, db.Create(&models.MessageClick{
		MessageID:       fx.message.ID,
		RecipientID:     recipientID,
		TeamID:          fx.team.ID,
		BeaconID:        fx.message.BeaconID,
		URL:             url,
		IPHash:          "deadbeef",
		UserAgentFamily: "Chrome",
	}).Error)
}

func TestRecomputeCampaignStats(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 3)
	svc := NewAnalyticsService(db, nil)

	r0 := recipientByEmail(t, db, "reader0@example.com")
	r1 := recipientByEmail(t, db, "reader1@example.com")
	r2 := recipientByEmail(t, db, "reader2@example.com")
	setRecipientStatus(t, db, r0.ID, models.RecipientStatusOpened)
	setRecipientStatus(t, db, r1.ID, models.RecipientStatusClicked)
	setRecipientStatus(t, db, r2.ID, models.RecipientStatusFailed)

	seedOpen(t, db, fx, &r0.ID)
	seedOpen(t, db, fx, &r0.ID)
	seedOpen(t, db, fx, nil)
	seedClick(t, db, fx, &r1.ID, "https://acme.io/launch")

	stats, err := svc.RecomputeCampaignStats(context.Background(), fx.campaign.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalRecipients)
	require.Equal(t, 2, stats.Sent)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 3, stats.Opened)
	require.Equal(t, 1, stats.Clicked)
	require.Equal(t, 1, stats.UniqueOpens)
	require.InDelta(t, 100.0, stats.OpenRate, 0.001)
	require.InDelta(t, 50.0, stats.ClickRate, 0.001)
	require.NotNil(t, stats.LastComputedAt)

	// Recomputing refreshes the row in place.
	_, err = svc.RecomputeCampaignStats(context.Background(), fx.campaign.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.CampaignStats{}).Where("campaign_id = ?", fx.campaign.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRecomputeCampaignStatsWithoutMessages(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 0)
	svc := NewAnalyticsService(db, nil)

	bare := &models.Campaign{Name: "Empty", ListID: &fx.list.ID, TeamID: fx.team.ID}
	require.NoError(t, db.Create(bare).Error)

	stats, err := svc.RecomputeCampaignStats(context.Background(), bare.ID)
	require.NoError(t, err)
	require.Zero(t, stats.TotalRecipients)
	require.Zero(t, stats.Opened)
	require.Zero(t, stats.OpenRate)
}

func TestRecomputeCampaignStatsUnknownCampaign(t *testing.T) {
	db := testDB(t)
	svc := NewAnalyticsService(db, nil)

	_, err := svc.RecomputeCampaignStats(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	require.Contains(t, err.Error(), "campaign not found")
}

func TestRecomputeTeamStats(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 3)
	svc := NewAnalyticsService(db, nil)

	backup := &models.SMTPAccount{
		Name: "backup", Host: "smtp2.acme.io", Port: 587, Username: "mailer",
		Password: "hunter2", FromEmail: "backup@acme.io", IsActive: true, TeamID: fx.team.ID,
	}
	require.NoError(t, db.Create(backup).Error)
	require.NoError(t, db.Model(backup).Update("is_active", false).Error)
	require.NoError(t, db.Create(&models.DomainCheck{Domain: "acme.io", TeamID: fx.team.ID}).Error)
	require.NoError(t, db.Create(&models.EmailCheck{Email: "jo@acme.io", TeamID: fx.team.ID}).Error)

	r0 := recipientByEmail(t, db, "reader0@example.com")
	seedOpen(t, db, fx, &r0.ID)
	seedOpen(t, db, fx, &r0.ID)
	seedOpen(t, db, fx, nil)

	stats, err := svc.RecomputeTeamStats(context.Background(), fx.team.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalCampaigns)
	require.Equal(t, 1, stats.ActiveCampaigns)
	require.Equal(t, 1, stats.TotalMessages)
	require.Equal(t, 3, stats.TotalRecipients)
	require.Equal(t, 1, stats.ActiveSMTPAccounts)
	require.Equal(t, 1, stats.DisabledSMTPAccounts)
	require.Equal(t, 1, stats.DomainsChecked)
	require.Equal(t, 1, stats.EmailsChecked)
	require.InDelta(t, 3.0, stats.AverageOpens, 0.001)

	_, err = svc.RecomputeTeamStats(context.Background(), fx.team.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.TeamStats{}).Where("team_id = ?", fx.team.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestEngagementTimeline(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 1)
	svc := NewAnalyticsService(db, nil)

	r0 := recipientByEmail(t, db, "reader0@example.com")
	seedOpen(t, db, fx, &r0.ID)
	seedOpen(t, db, fx, nil)
	seedClick(t, db, fx, &r0.ID, "https://acme.io/launch")

	// An open outside the window never shows up.
	old := time.Now().AddDate(0, 0, -40)
	require.NoError(t, db.Create(&models.MessageOpen{
		Base:      models.Base{CreatedAt: old},
		MessageID: fx.message.ID,
		TeamID:    fx.team.ID,
		BeaconID:  fx.message.BeaconID,
		IPHash:    "deadbeef",
	}).Error)

	timeline, err := svc.EngagementTimeline(context.Background(), fx.team.ID, fx.campaign.ID, 0)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	require.Equal(t, time.Now().Format("2006-01-02"), timeline[0].Date)
	require.Equal(t, 2, timeline[0].Opens)
	require.Equal(t, 1, timeline[0].Clicks)
}

func TestEngagementTimelineEmptyCampaign(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 0)
	svc := NewAnalyticsService(db, nil)

	bare := &models.Campaign{Name: "Empty", ListID: &fx.list.ID, TeamID: fx.team.ID}
	require.NoError(t, db.Create(bare).Error)

	timeline, err := svc.EngagementTimeline(context.Background(), fx.team.ID, bare.ID, 7)
	require.NoError(t, err)
	require.Empty(t, timeline)
}

func TestExportEngagementCSV(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 2)
	svc := NewAnalyticsService(db, nil)

	r0 := recipientByEmail(t, db, "reader0@example.com")
	r1 := recipientByEmail(t, db, "reader1@example.com")
	seedOpen(t, db, fx, &r0.ID)
	seedOpen(t, db, fx, nil)
	seedClick(t, db, fx, &r1.ID, "https://acme.io/launch")

	out, err := svc.ExportEngagement(context.Background(), fx.team.ID, fx.campaign.ID, "csv")
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, []string{"Timestamp", "Event", "Email", "URL", "Browser"}, rows[0])

	var openEmails []string
	for _, row := range rows[1:3] {
		require.Equal(t, "open", row[1])
		openEmails = append(openEmails, row[2])
	}
	require.ElementsMatch(t, []string{"reader0@example.com", ""}, openEmails)

	click := rows[3]
	require.Equal(t, "click", click[1])
	require.Equal(t, "reader1@example.com", click[2])
	require.Equal(t, "https://acme.io/launch", click[3])
	require.Equal(t, "Chrome", click[4])
}

func TestUploadExportRequiresStorage(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 0)
	svc := NewAnalyticsService(db, nil)

	_, err := svc.UploadExport(context.Background(), fx.team.ID, fx.campaign.ID, "csv")
	require.Error(t, err)
	require.Contains(t, err.Error(), "storage is not configured")
}

func TestRecomputeAllCoversEveryTeam(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 1)
	other := &models.Team{Name: "Globex", PlanTier: models.PlanTierFree}
	require.NoError(t, db.Create(other).Error)

	svc := NewAnalyticsService(db, nil)
	require.NoError(t, svc.RecomputeAll(context.Background()))

	var teamRows int64
	require.NoError(t, db.Model(&models.TeamStats{}).Count(&teamRows).Error)
	require.EqualValues(t, 2, teamRows)

	campaignStats := &models.CampaignStats{}
	require.NoError(t, db.First(campaignStats, "campaign_id = ?", fx.campaign.ID).Error)
	require.NotNil(t, campaignStats.LastComputedAt)
}

func TestWireRecomputesOnOpenEvent(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 1)

	svc := NewAnalyticsService(db, nil)
	svc.Wire()

	r0 := recipientByEmail(t, db, "reader0@example.com")
	seedOpen(t, db, fx, &r0.ID)

	require.Eventually(t, func() bool {
		stats := &models.CampaignStats{}
		if err := db.First(stats, "campaign_id = ?", fx.campaign.ID).Error; err != nil {
			return false
		}
		return stats.Opened == 1
	}, 2*time.Second, 25*time.Millisecond)
}
