package services

import (
	"context"
	"testing"
	"time"

	"tern/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCampaignService(db *gorm.DB, enqueuer CampaignEnqueuer) *CampaignService {
	return NewCampaignService(db, NewPlanService(db, nil), enqueuer)
}

func recipientCount(t *testing.T, db *gorm.DB, messageID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.MessageRecipient{}).
		Where("message_id = ?", messageID).Count(&count).Error)
	return count
}

func TestActivateExpandsListAndQueuesMessage(t *testing.T) {
	db := testDB(t)
	enqueuer := &stubCampaignEnqueuer{}
	svc := newCampaignService(db, enqueuer)
	fx := seedDraftCampaign(t, db, 3)

	// Unsubscribed contacts never make it into a send.
	require.NoError(t, db.Model(&fx.contacts[2]).
		Update("status", models.SubscriberStatusUnsubscribed).Error)

	campaign, err := svc.Activate(context.Background(), fx.team.ID, fx.campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignStatusActive, campaign.Status)

	require.EqualValues(t, 2, recipientCount(t, db, fx.message.ID))

	message := &models.Message{}
	require.NoError(t, db.First(message, "id = ?", fx.message.ID).Error)
	require.Equal(t, models.MessageStatusQueued, message.Status)

	calls := enqueuer.enqueued()
	require.Len(t, calls, 1)
	require.Equal(t, fx.campaign.ID, calls[0].campaignID)
	require.Equal(t, 50, calls[0].batchSize)
	require.WithinDuration(t, time.Now(), calls[0].at, 5*time.Second)
}

func TestActivateNeverDuplicatesRecipients(t *testing.T) {
	db := testDB(t)
	svc := newCampaignService(db, &stubCampaignEnqueuer{})
	fx := seedDraftCampaign(t, db, 2)

	_, err := svc.Activate(context.Background(), fx.team.ID, fx.campaign.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, recipientCount(t, db, fx.message.ID))

	_, err = svc.Pause(context.Background(), fx.team.ID, fx.campaign.ID)
	require.NoError(t, err)

	_, err = svc.Activate(context.Background(), fx.team.ID, fx.campaign.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, recipientCount(t, db, fx.message.ID))
}

func TestActivateRequiresMessage(t *testing.T) {
	db := testDB(t)
	svc := newCampaignService(db, nil)
	team := &models.Team{Name: "Acme", PlanTier: models.PlanTierPremium}
	require.NoError(t, db.Create(team).Error)
	campaign := &models.Campaign{Name: "Empty", TeamID: team.ID}
	require.NoError(t, db.Create(campaign).Error)

	_, err := svc.Activate(context.Background(), team.ID, campaign.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "campaign has no message")
}

func TestActivateRejectsTerminalStatus(t *testing.T) {
	db := testDB(t)
	svc := newCampaignService(db, nil)
	fx := seedDraftCampaign(t, db, 1)
	require.NoError(t, db.Model(fx.campaign).Update("status", models.CampaignStatusCompleted).Error)

	_, err := svc.Activate(context.Background(), fx.team.ID, fx.campaign.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot be activated")
}

func TestActivateEmptyListFails(t *testing.T) {
	db := testDB(t)
	svc := newCampaignService(db, nil)
	fx := seedDraftCampaign(t, db, 0)

	_, err := svc.Activate(context.Background(), fx.team.ID, fx.campaign.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no pending recipients")
}

func TestActivateValidatesCronExpression(t *testing.T) {
	db := testDB(t)
	svc := newCampaignService(db, nil)
	fx := seedDraftCampaign(t, db, 1)
	require.NoError(t, db.Model(fx.campaign).Updates(map[string]interface{}{
		"schedule":        models.CampaignScheduleRecurring,
		"cron_expression": "every day at nine",
	}).Error)

	_, err := svc.Activate(context.Background(), fx.team.ID, fx.campaign.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid cron expression")
}

func TestActivateEnforcesPlanCap(t *testing.T) {
	db := testDB(t)
	svc := newCampaignService(db, nil)
	fx := seedDraftCampaign(t, db, 1)
	require.NoError(t, db.Model(fx.team).Update("plan_tier", models.PlanTierFree).Error)
	for i := 0; i < 3; i++ {
		seedCampaignWithStatus(t, db, fx.team.ID, models.CampaignStatusActive)
	}

	_, err := svc.Activate(context.Background(), fx.team.ID, fx.campaign.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "active campaigns allowed")
}

func TestPauseRequiresActiveCampaign(t *testing.T) {
	db := testDB(t)
	svc := newCampaignService(db, nil)
	fx := seedDraftCampaign(t, db, 1)

	_, err := svc.Pause(context.Background(), fx.team.ID, fx.campaign.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "is not active")

	_, err = svc.Activate(context.Background(), fx.team.ID, fx.campaign.ID)
	require.NoError(t, err)

	paused, err := svc.Pause(context.Background(), fx.team.ID, fx.campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignStatusPaused, paused.Status)
}

func TestScheduleNextRun(t *testing.T) {
	db := testDB(t)
	enqueuer := &stubCampaignEnqueuer{}
	svc := newCampaignService(db, enqueuer)
	team := &models.Team{Name: "Acme", PlanTier: models.PlanTierPremium}
	require.NoError(t, db.Create(team).Error)
	campaign := &models.Campaign{
		Name:           "Digest",
		Status:         models.CampaignStatusActive,
		Schedule:       models.CampaignScheduleRecurring,
		CronExpression: "0 9 * * *",
		Timezone:       "UTC",
		BatchSize:      25,
		TeamID:         team.ID,
	}
	require.NoError(t, db.Create(campaign).Error)

	require.NoError(t, svc.ScheduleNextRun(context.Background(), campaign))
	require.NotNil(t, campaign.ScheduledFor)
	require.True(t, campaign.ScheduledFor.After(time.Now()))

	stored := &models.Campaign{}
	require.NoError(t, db.First(stored, "id = ?", campaign.ID).Error)
	require.Equal(t, models.CampaignStatusActive, stored.Status)
	require.NotNil(t, stored.ScheduledFor)

	calls := enqueuer.enqueued()
	require.Len(t, calls, 1)
	require.Equal(t, campaign.ID, calls[0].campaignID)
	require.Equal(t, 25, calls[0].batchSize)
	require.True(t, calls[0].at.Equal(*campaign.ScheduledFor))
}

func TestScheduleNextRunIgnoresOneTimeCampaigns(t *testing.T) {
	db := testDB(t)
	enqueuer := &stubCampaignEnqueuer{}
	svc := newCampaignService(db, enqueuer)
	team := &models.Team{Name: "Acme", PlanTier: models.PlanTierPremium}
	require.NoError(t, db.Create(team).Error)
	campaign := &models.Campaign{Name: "Oneshot", Status: models.CampaignStatusActive, TeamID: team.ID}
	require.NoError(t, db.Create(campaign).Error)

	require.NoError(t, svc.ScheduleNextRun(context.Background(), campaign))
	require.Nil(t, campaign.ScheduledFor)
	require.Empty(t, enqueuer.enqueued())
}

func TestDueCampaigns(t *testing.T) {
	db := testDB(t)
	svc := newCampaignService(db, nil)
	team := &models.Team{Name: "Acme", PlanTier: models.PlanTierPremium}
	require.NoError(t, db.Create(team).Error)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	unscheduled := &models.Campaign{Name: "now", Status: models.CampaignStatusActive, TeamID: team.ID}
	require.NoError(t, db.Create(unscheduled).Error)
	overdue := &models.Campaign{Name: "past", Status: models.CampaignStatusActive, ScheduledFor: &past, TeamID: team.ID}
	require.NoError(t, db.Create(overdue).Error)
	scheduled := &models.Campaign{Name: "future", Status: models.CampaignStatusActive, ScheduledFor: &future, TeamID: team.ID}
	require.NoError(t, db.Create(scheduled).Error)
	paused := &models.Campaign{Name: "paused", Status: models.CampaignStatusPaused, ScheduledFor: &past, TeamID: team.ID}
	require.NoError(t, db.Create(paused).Error)

	due, err := svc.DueCampaigns(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, due, 2)
	ids := []string{due[0].ID, due[1].ID}
	require.ElementsMatch(t, []string{unscheduled.ID, overdue.ID}, ids)
}

func TestRetryableCampaignsIncludesFailed(t *testing.T) {
	db := testDB(t)
	svc := newCampaignService(db, nil)
	team := &models.Team{Name: "Acme", PlanTier: models.PlanTierPremium}
	require.NoError(t, db.Create(team).Error)

	active := &models.Campaign{Name: "active", Status: models.CampaignStatusActive, TeamID: team.ID}
	require.NoError(t, db.Create(active).Error)
	failed := &models.Campaign{Name: "failed", Status: models.CampaignStatusFailed, TeamID: team.ID}
	require.NoError(t, db.Create(failed).Error)
	completed := &models.Campaign{Name: "done", Status: models.CampaignStatusCompleted, TeamID: team.ID}
	require.NoError(t, db.Create(completed).Error)

	retryable, err := svc.RetryableCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, retryable, 2)
	ids := []string{retryable[0].ID, retryable[1].ID}
	require.ElementsMatch(t, []string{active.ID, failed.ID}, ids)
}
