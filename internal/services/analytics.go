package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"tern/internal/events"
	"tern/internal/models"
	"tern/internal/utils/logger"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var analyticsLog = logger.New("ANALYTICS")

// AnalyticsService keeps the aggregate tables current and builds the
// engagement exports. Aggregates are recomputed from the source tables,
// never incremented, so replays and races cannot skew them.
type AnalyticsService struct {
	db      *gorm.DB
	storage *StorageService
	log     *logger.Logger
}

func NewAnalyticsService(db *gorm.DB, storage *StorageService) *AnalyticsService {
	return &AnalyticsService{db: db, storage: storage, log: analyticsLog}
}

// Wire subscribes the recompute handlers to the engagement events.
func (s *AnalyticsService) Wire() {
	recompute := func(messageID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		message, err := models.GetMessageByID(s.db.WithContext(ctx), messageID)
		if err != nil {
			s.log.Error("failed to load message %s for stats: %v", messageID, err)
			return
		}
		if _, err := s.RecomputeCampaignStats(ctx, message.CampaignID); err != nil {
			s.log.Error("failed to recompute stats for campaign %s: %v", message.CampaignID, err)
		}
	}

	events.On("message_open.created", func(data interface{}) {
		if open, ok := data.(*models.MessageOpen); ok {
			recompute(open.MessageID)
		}
	})
	events.On("message_click.created", func(data interface{}) {
		if click, ok := data.(*models.MessageClick); ok {
			recompute(click.MessageID)
		}
	})
	events.On("campaign.processed", func(data interface{}) {
		campaign, ok := data.(*models.Campaign)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.RecomputeCampaignStats(ctx, campaign.ID); err != nil {
			s.log.Error("failed to recompute stats for campaign %s: %v", campaign.ID, err)
		}
		if _, err := s.RecomputeTeamStats(ctx, campaign.TeamID); err != nil {
			s.log.Error("failed to recompute stats for team %s: %v", campaign.TeamID, err)
		}
	})
}

func (s *AnalyticsService) messageIDs(ctx context.Context, campaignID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("campaign_id = ?", campaignID).
		Pluck("id", &ids).Error
	return ids, err
}

// RecomputeCampaignStats rebuilds the campaign aggregate from the
// recipient and beacon tables.
func (s *AnalyticsService) RecomputeCampaignStats(ctx context.Context, campaignID string) (*models.CampaignStats, error) {
	campaign := &models.Campaign{}
	if err := s.db.WithContext(ctx).First(campaign, "id = ?", campaignID).Error; err != nil {
		return nil, fmt.Errorf("campaign not found: %w", err)
	}

	ids, err := s.messageIDs(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	stats := &models.CampaignStats{
		CampaignID: campaignID,
		TeamID:     campaign.TeamID,
	}
	now := time.Now()
	stats.LastComputedAt = &now

	if len(ids) > 0 {
		tx := s.db.WithContext(ctx)
		count := func(dest *int, q *gorm.DB) error {
			var n int64
			if err := q.Count(&n).Error; err != nil {
				return err
			}
			*dest = int(n)
			return nil
		}

		recipients := func() *gorm.DB {
			return tx.Model(&models.MessageRecipient{}).Where("message_id IN ?", ids)
		}

		if err := count(&stats.TotalRecipients, recipients()); err != nil {
			return nil, err
		}
		if err := count(&stats.Sent, recipients().Where("status IN ?", []models.RecipientStatus{
			models.RecipientStatusSent, models.RecipientStatusOpened, models.RecipientStatusClicked,
		})); err != nil {
			return nil, err
		}
		if err := count(&stats.Failed, recipients().Where("status IN ?", []models.RecipientStatus{
			models.RecipientStatusFailed, models.RecipientStatusBounced,
		})); err != nil {
			return nil, err
		}
		if err := count(&stats.Opened, tx.Model(&models.MessageOpen{}).Where("message_id IN ?", ids)); err != nil {
			return nil, err
		}
		if err := count(&stats.Clicked, tx.Model(&models.MessageClick{}).Where("message_id IN ?", ids)); err != nil {
			return nil, err
		}

		var uniqueOpens int64
		if err := tx.Model(&models.MessageOpen{}).
			Where("message_id IN ? AND recipient_id IS NOT NULL", ids).
			Distinct("recipient_id").Count(&uniqueOpens).Error; err != nil {
			return nil, err
		}
		stats.UniqueOpens = int(uniqueOpens)

		var openedRecipients, clickedRecipients int
		if err := count(&openedRecipients, recipients().Where("status IN ?", []models.RecipientStatus{
			models.RecipientStatusOpened, models.RecipientStatusClicked,
		})); err != nil {
			return nil, err
		}
		if err := count(&clickedRecipients, recipients().Where("status = ?", models.RecipientStatusClicked)); err != nil {
			return nil, err
		}

		if stats.Sent > 0 {
			stats.OpenRate = float64(openedRecipients) / float64(stats.Sent) * 100
			stats.ClickRate = float64(clickedRecipients) / float64(stats.Sent) * 100
		}
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "campaign_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_recipients", "sent", "failed", "opened", "clicked",
				"unique_opens", "open_rate", "click_rate", "last_computed_at", "updated_at",
			}),
		}).
		Create(stats).Error
	if err != nil {
		return nil, s.log.Error("failed to store campaign stats: %v", err)
	}

	return stats, nil
}

// RecomputeTeamStats rebuilds the team rollup.
func (s *AnalyticsService) RecomputeTeamStats(ctx context.Context, teamID string) (*models.TeamStats, error) {
	tx := s.db.WithContext(ctx)

	stats := &models.TeamStats{TeamID: teamID}
	now := time.Now()
	stats.LastComputedAt = &now

	count := func(dest *int, q *gorm.DB) error {
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return err
		}
		*dest = int(n)
		return nil
	}

	if err := count(&stats.TotalCampaigns, tx.Model(&models.Campaign{}).Where("team_id = ?", teamID)); err != nil {
		return nil, err
	}
	if err := count(&stats.ActiveCampaigns, tx.Model(&models.Campaign{}).Where("team_id = ? AND status = ?", teamID, models.CampaignStatusActive)); err != nil {
		return nil, err
	}
	if err := count(&stats.TotalMessages, tx.Model(&models.Message{}).Where("team_id = ?", teamID)); err != nil {
		return nil, err
	}
	var recipients int64
	if err := tx.Model(&models.MessageRecipient{}).
		Joins("JOIN messages ON messages.id = message_recipients.message_id").
		Where("messages.team_id = ?", teamID).
		Count(&recipients).Error; err != nil {
		return nil, err
	}
	stats.TotalRecipients = int(recipients)

	if err := count(&stats.ActiveSMTPAccounts, tx.Model(&models.SMTPAccount{}).Where("team_id = ? AND is_active = ?", teamID, true)); err != nil {
		return nil, err
	}
	if err := count(&stats.DisabledSMTPAccounts, tx.Model(&models.SMTPAccount{}).Where("team_id = ? AND is_active = ?", teamID, false)); err != nil {
		return nil, err
	}
	if err := count(&stats.DomainsChecked, tx.Model(&models.DomainCheck{}).Where("team_id = ?", teamID)); err != nil {
		return nil, err
	}
	if err := count(&stats.EmailsChecked, tx.Model(&models.EmailCheck{}).Where("team_id = ?", teamID)); err != nil {
		return nil, err
	}

	var opens int64
	if err := tx.Model(&models.MessageOpen{}).Where("team_id = ?", teamID).Count(&opens).Error; err != nil {
		return nil, err
	}
	if stats.TotalMessages > 0 {
		stats.AverageOpens = float64(opens) / float64(stats.TotalMessages)
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "team_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_campaigns", "active_campaigns", "total_messages", "total_recipients",
				"average_opens", "active_smtp_accounts", "disabled_smtp_accounts",
				"domains_checked", "emails_checked", "last_computed_at", "updated_at",
			}),
		}).
		Create(stats).Error
	if err != nil {
		return nil, s.log.Error("failed to store team stats: %v", err)
	}

	return stats, nil
}

// RecomputeAll walks every team. Runs nightly from the scheduler.
func (s *AnalyticsService) RecomputeAll(ctx context.Context) error {
	var teamIDs []string
	if err := s.db.WithContext(ctx).Model(&models.Team{}).Pluck("id", &teamIDs).Error; err != nil {
		return err
	}

	for _, teamID := range teamIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.RecomputeTeamStats(ctx, teamID); err != nil {
			s.log.Error("team %s stats failed: %v", teamID, err)
		}

		var campaignIDs []string
		if err := s.db.WithContext(ctx).Model(&models.Campaign{}).
			Where("team_id = ?", teamID).Pluck("id", &campaignIDs).Error; err != nil {
			continue
		}
		for _, campaignID := range campaignIDs {
			if _, err := s.RecomputeCampaignStats(ctx, campaignID); err != nil {
				s.log.Error("campaign %s stats failed: %v", campaignID, err)
			}
		}
	}

	s.log.Success("Stats recomputed for %d teams", len(teamIDs))
	return nil
}

// TimelinePoint is one day of engagement for a campaign.
type TimelinePoint struct {
	Date   string `json:"date"`
	Opens  int    `json:"opens"`
	Clicks int    `json:"clicks"`
}

// EngagementTimeline buckets a campaign's opens and clicks per day over
// the trailing window.
func (s *AnalyticsService) EngagementTimeline(ctx context.Context, teamID, campaignID string, days int) ([]TimelinePoint, error) {
	if days <= 0 {
		days = 30
	}

	ids, err := s.messageIDs(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []TimelinePoint{}, nil
	}

	since := time.Now().AddDate(0, 0, -days)

	var opens []models.MessageOpen
	if err := s.db.WithContext(ctx).
		Where("message_id IN ? AND team_id = ? AND created_at >= ?", ids, teamID, since).
		Find(&opens).Error; err != nil {
		return nil, err
	}
	var clicks []models.MessageClick
	if err := s.db.WithContext(ctx).
		Where("message_id IN ? AND team_id = ? AND created_at >= ?", ids, teamID, since).
		Find(&clicks).Error; err != nil {
		return nil, err
	}

	byDay := map[string]*TimelinePoint{}
	point := func(t time.Time) *TimelinePoint {
		day := t.Format("2006-01-02")
		p, ok := byDay[day]
		if !ok {
			p = &TimelinePoint{Date: day}
			byDay[day] = p
		}
		return p
	}
	for _, o := range opens {
		point(o.CreatedAt).Opens++
	}
	for _, c := range clicks {
		point(c.CreatedAt).Clicks++
	}

	timeline := make([]TimelinePoint, 0, days)
	for d := 0; d <= days; d++ {
		day := since.AddDate(0, 0, d).Format("2006-01-02")
		if p, ok := byDay[day]; ok {
			timeline = append(timeline, *p)
		}
	}
	return timeline, nil
}

type engagementRow struct {
	Timestamp time.Time
	Event     string
	Email     string
	URL       string
	UAFamily  string
}

func (s *AnalyticsService) engagementRows(ctx context.Context, teamID, campaignID string) ([]engagementRow, error) {
	ids, err := s.messageIDs(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	emailFor := func(recipientID *string) string {
		if recipientID == nil {
			return ""
		}
		r := &models.MessageRecipient{}
		if err := s.db.WithContext(ctx).Select("email").First(r, "id = ?", *recipientID).Error; err != nil {
			return ""
		}
		return r.Email
	}

	var rows []engagementRow

	var opens []models.MessageOpen
	if err := s.db.WithContext(ctx).
		Where("message_id IN ? AND team_id = ?", ids, teamID).
		Order("created_at asc").Find(&opens).Error; err != nil {
		return nil, err
	}
	for _, o := range opens {
		rows = append(rows, engagementRow{
			Timestamp: o.CreatedAt,
			Event:     string(models.TrackingEventOpen),
			Email:     emailFor(o.RecipientID),
			UAFamily:  o.UserAgentFamily,
		})
	}

	var clicks []models.MessageClick
	if err := s.db.WithContext(ctx).
		Where("message_id IN ? AND team_id = ?", ids, teamID).
		Order("created_at asc").Find(&clicks).Error; err != nil {
		return nil, err
	}
	for _, c := range clicks {
		rows = append(rows, engagementRow{
			Timestamp: c.CreatedAt,
			Event:     string(models.TrackingEventClick),
			Email:     emailFor(c.RecipientID),
			URL:       c.URL,
			UAFamily:  c.UserAgentFamily,
		})
	}

	return rows, nil
}

var engagementExportHeader = []string{"Timestamp", "Event", "Email", "URL", "Browser"}

// ExportEngagement renders a campaign's beacon events as csv or xlsx.
func (s *AnalyticsService) ExportEngagement(ctx context.Context, teamID, campaignID, format string) ([]byte, error) {
	rows, err := s.engagementRows(ctx, teamID, campaignID)
	if err != nil {
		return nil, err
	}

	switch format {
	case "xlsx":
		f := excelize.NewFile()
		defer func() {
			if err := f.Close(); err != nil {
				s.log.Error("failed to close excel file: %v", err)
			}
		}()

		sheet := "Sheet1"
		for i, header := range engagementExportHeader {
			col := string(rune('A' + i))
			f.SetCellValue(sheet, col+"1", header)
		}
		for i, r := range rows {
			row := i + 2
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.Timestamp.Format(time.RFC3339))
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.Event)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.Email)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.URL)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.UAFamily)
		}

		buffer, err := f.WriteToBuffer()
		if err != nil {
			return nil, s.log.Error("failed to write excel buffer: %v", err)
		}
		return buffer.Bytes(), nil

	default:
		buffer := &bytes.Buffer{}
		writer := csv.NewWriter(buffer)
		writer.Write(engagementExportHeader)
		for _, r := range rows {
			writer.Write([]string{
				r.Timestamp.Format(time.RFC3339),
				r.Event,
				r.Email,
				r.URL,
				r.UAFamily,
			})
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, err
		}
		return buffer.Bytes(), nil
	}
}

// UploadExport pushes an export to S3 and returns a signed URL good for
// an hour. Errors when storage is not configured.
func (s *AnalyticsService) UploadExport(ctx context.Context, teamID, campaignID, format string) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("storage is not configured")
	}

	data, err := s.ExportEngagement(ctx, teamID, campaignID, format)
	if err != nil {
		return "", err
	}

	ext := "csv"
	contentType := "text/csv"
	if format == "xlsx" {
		ext = "xlsx"
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	key := fmt.Sprintf("exports/%s/%s-%d.%s", teamID, campaignID, time.Now().Unix(), ext)
	if _, err := s.storage.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", err
	}

	return s.storage.GetSignedURL(ctx, key, time.Hour)
}
