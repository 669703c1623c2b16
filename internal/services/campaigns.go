package services

import (
	"context"
	"errors"
	"fmt"
	"tern/internal/models"
	"tern/internal/utils/logger"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var campaignLog = logger.New("CAMPAIGNS")

// CampaignEnqueuer is the slice of the task client the campaign service
// needs. Kept narrow so tests can stub it and the tasks package can depend
// on services without a cycle.
type CampaignEnqueuer interface {
	EnqueueCampaignTask(ctx context.Context, campaignID string, batchSize int, at time.Time) error
}

// CampaignService drives the campaign lifecycle: draft to active to
// completed, plus pause/resume and the recurring reschedule.
type CampaignService struct {
	db       *gorm.DB
	plans    *PlanService
	enqueuer CampaignEnqueuer
	log      *logger.Logger
}

func NewCampaignService(db *gorm.DB, plans *PlanService, enqueuer CampaignEnqueuer) *CampaignService {
	return &CampaignService{
		db:       db,
		plans:    plans,
		enqueuer: enqueuer,
		log:      campaignLog,
	}
}

func (s *CampaignService) get(ctx context.Context, teamID, campaignID string) (*models.Campaign, error) {
	campaign := &models.Campaign{}
	if err := s.db.WithContext(ctx).Where("id = ? AND team_id = ?", campaignID, teamID).First(campaign).Error; err != nil {
		return nil, fmt.Errorf("campaign not found: %w", err)
	}
	return campaign, nil
}

// Get returns a campaign owned by the team.
func (s *CampaignService) Get(ctx context.Context, teamID, campaignID string) (*models.Campaign, error) {
	return s.get(ctx, teamID, campaignID)
}

// Activate moves a draft or paused campaign into the send pipeline.
// The campaign must carry a message, and activating must stay within the
// team's plan. Recipients are expanded from the list before the first run.
func (s *CampaignService) Activate(ctx context.Context, teamID, campaignID string) (*models.Campaign, error) {
	campaign, err := s.get(ctx, teamID, campaignID)
	if err != nil {
		return nil, err
	}

	if campaign.Status != models.CampaignStatusDraft && campaign.Status != models.CampaignStatusPaused {
		return nil, fmt.Errorf("campaign %s cannot be activated from status %s", campaign.ID, campaign.Status)
	}
	if campaign.Name == "" {
		return nil, errors.New("campaign has no name")
	}
	if campaign.IsRecurring() {
		if _, err := cron.ParseStandard(campaign.CronExpression); err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", campaign.CronExpression, err)
		}
	}

	message, err := models.CampaignMessage(s.db.WithContext(ctx), campaign.ID)
	if err != nil {
		return nil, err
	}

	// Resuming a paused campaign does not re-check the cap, it already
	// counted while paused.
	if campaign.Status == models.CampaignStatusDraft && s.plans != nil {
		if err := s.plans.CanActivateCampaign(ctx, teamID); err != nil {
			return nil, err
		}
	}

	added, err := s.ExpandRecipients(ctx, campaign, message)
	if err != nil {
		return nil, err
	}

	var pending int64
	if err := s.db.WithContext(ctx).Model(&models.MessageRecipient{}).
		Where("message_id = ? AND status = ?", message.ID, models.RecipientStatusPending).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending == 0 {
		return nil, errors.New("campaign has no pending recipients")
	}

	if err := s.db.WithContext(ctx).Model(campaign).Updates(map[string]interface{}{
		"status": models.CampaignStatusActive,
	}).Error; err != nil {
		return nil, s.log.Error("failed to activate campaign %s: %v", campaign.ID, err)
	}
	campaign.Status = models.CampaignStatusActive

	// Hand the message to the queue drain as a second path to delivery.
	if message.Status == models.MessageStatusDraft {
		if err := s.db.WithContext(ctx).Model(message).Update("status", models.MessageStatusQueued).Error; err != nil {
			s.log.Error("failed to queue message %s: %v", message.ID, err)
		}
	}

	at := time.Now()
	if campaign.ScheduledFor != nil && campaign.ScheduledFor.After(at) {
		at = *campaign.ScheduledFor
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueCampaignTask(ctx, campaign.ID, campaign.BatchSize, at); err != nil {
			s.log.Error("failed to enqueue campaign %s: %v", campaign.ID, err)
		}
	}

	s.log.Success("Campaign %s activated with %d recipients (%d new)", campaign.ID, pending, added)
	return campaign, nil
}

// Pause takes an active campaign out of the pipeline. Workers check the
// status on every run, so an in-flight batch finishes and the next one
// never starts.
func (s *CampaignService) Pause(ctx context.Context, teamID, campaignID string) (*models.Campaign, error) {
	campaign, err := s.get(ctx, teamID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusActive {
		return nil, fmt.Errorf("campaign %s is not active", campaign.ID)
	}

	if err := s.db.WithContext(ctx).Model(campaign).Updates(map[string]interface{}{
		"status": models.CampaignStatusPaused,
	}).Error; err != nil {
		return nil, s.log.Error("failed to pause campaign %s: %v", campaign.ID, err)
	}
	campaign.Status = models.CampaignStatusPaused

	s.log.Info("Campaign %s paused", campaign.ID)
	return campaign, nil
}

// ExpandRecipients materializes the campaign's list into recipient rows.
// Existing rows are left untouched, so re-activating never duplicates or
// resets anyone.
func (s *CampaignService) ExpandRecipients(ctx context.Context, campaign *models.Campaign, message *models.Message) (int, error) {
	if campaign.ListID == nil || *campaign.ListID == "" {
		return 0, nil
	}

	contacts, err := models.ActiveContactsForList(s.db.WithContext(ctx), *campaign.ListID)
	if err != nil {
		return 0, err
	}
	if len(contacts) == 0 {
		return 0, nil
	}

	recipients := make([]models.MessageRecipient, 0, len(contacts))
	for _, contact := range contacts {
		recipients = append(recipients, models.MessageRecipient{
			MessageID: message.ID,
			ContactID: contact.ID,
			Email:     contact.Email,
		})
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(recipients, 500)
	if res.Error != nil {
		return 0, s.log.Error("failed to expand recipients for campaign %s: %v", campaign.ID, res.Error)
	}

	return int(res.RowsAffected), nil
}

// ScheduleNextRun queues the next occurrence of a recurring campaign.
// Called by the pipeline once a run completes.
func (s *CampaignService) ScheduleNextRun(ctx context.Context, campaign *models.Campaign) error {
	if !campaign.IsRecurring() {
		return nil
	}

	schedule, err := cron.ParseStandard(campaign.CronExpression)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", campaign.CronExpression, err)
	}

	loc, err := time.LoadLocation(campaign.Timezone)
	if err != nil {
		loc = time.UTC
	}
	next := schedule.Next(time.Now().In(loc))

	if err := s.db.WithContext(ctx).Model(campaign).Updates(map[string]interface{}{
		"scheduled_for": next,
		"status":        models.CampaignStatusActive,
	}).Error; err != nil {
		return s.log.Error("failed to reschedule campaign %s: %v", campaign.ID, err)
	}
	campaign.ScheduledFor = &next
	campaign.Status = models.CampaignStatusActive

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueCampaignTask(ctx, campaign.ID, campaign.BatchSize, next); err != nil {
			return s.log.Error("failed to enqueue next run of campaign %s: %v", campaign.ID, err)
		}
	}

	s.log.Info("Campaign %s rescheduled for %s ⏰", campaign.ID, next.Format(time.RFC3339))
	return nil
}

// DueCampaigns returns the active campaigns ready for a pipeline pass.
func (s *CampaignService) DueCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.db.WithContext(ctx).
		Where("status = ?", models.CampaignStatusActive).
		Where("scheduled_for IS NULL OR scheduled_for <= ?", now).
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// RetryableCampaigns returns campaigns that may still hold failed
// recipients worth another attempt. FAILED campaigns are included so a
// retry pass can revive them.
func (s *CampaignService) RetryableCampaigns(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.db.WithContext(ctx).
		Where("status IN ?", []models.CampaignStatus{
			models.CampaignStatusActive,
			models.CampaignStatusFailed,
		}).
		Order("created_at asc").
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}
