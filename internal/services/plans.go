package services

import (
	"context"
	"fmt"
	"tern/internal/models"
	"tern/internal/utils"

	"gorm.io/gorm"
)

// PlanService enforces the static per-tier caps by counting what the team
// already has. No billing integration, the tier on the team record decides.
type PlanService struct {
	db    *gorm.DB
	redis *utils.RedisClient
}

func NewPlanService(db *gorm.DB, redis *utils.RedisClient) *PlanService {
	return &PlanService{db: db, redis: redis}
}

func (s *PlanService) limitsFor(ctx context.Context, teamID string) (models.PlanLimits, error) {
	team := &models.Team{}
	if err := s.db.WithContext(ctx).First(team, "id = ?", teamID).Error; err != nil {
		return models.PlanLimits{}, fmt.Errorf("team not found: %w", err)
	}
	return models.LimitsFor(team.PlanTier), nil
}

// CanCreateSMTPAccount checks the team's account count against its plan.
func (s *PlanService) CanCreateSMTPAccount(ctx context.Context, teamID string) error {
	limits, err := s.limitsFor(ctx, teamID)
	if err != nil {
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.SMTPAccount{}).
		Where("team_id = ?", teamID).Count(&count).Error; err != nil {
		return err
	}

	if !models.WithinLimit(int(count), limits.SMTPAccounts) {
		return fmt.Errorf("plan limit reached: %d smtp accounts allowed", *limits.SMTPAccounts)
	}
	return nil
}

// CanCreateRotationGroup checks whether introducing the named group would
// exceed the plan's distinct-group cap. Reusing an existing group is free.
func (s *PlanService) CanCreateRotationGroup(ctx context.Context, teamID, group string) error {
	limits, err := s.limitsFor(ctx, teamID)
	if err != nil {
		return err
	}
	if limits.RotationGroups == nil {
		return nil
	}

	var groups []string
	if err := s.db.WithContext(ctx).Model(&models.SMTPAccount{}).
		Where("team_id = ? AND rotation_group <> ''", teamID).
		Distinct("rotation_group").Pluck("rotation_group", &groups).Error; err != nil {
		return err
	}

	for _, g := range groups {
		if g == group {
			return nil
		}
	}
	if !models.WithinLimit(len(groups), limits.RotationGroups) {
		return fmt.Errorf("plan limit reached: %d rotation groups allowed", *limits.RotationGroups)
	}
	return nil
}

// CanActivateCampaign counts campaigns already in flight. Drafts do not
// count, paused ones do, they can resume at any time.
func (s *PlanService) CanActivateCampaign(ctx context.Context, teamID string) error {
	limits, err := s.limitsFor(ctx, teamID)
	if err != nil {
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("team_id = ? AND status IN ?", teamID, []models.CampaignStatus{
			models.CampaignStatusActive,
			models.CampaignStatusPaused,
		}).Count(&count).Error; err != nil {
		return err
	}

	if !models.WithinLimit(int(count), limits.ActiveCampaigns) {
		return fmt.Errorf("plan limit reached: %d active campaigns allowed", *limits.ActiveCampaigns)
	}
	return nil
}

// PlanUsage pairs each plan cap with the team's current consumption.
type PlanUsage struct {
	Tier            models.PlanTier   `json:"tier"`
	Limits          models.PlanLimits `json:"limits"`
	SMTPAccounts    int               `json:"smtpAccounts"`
	RotationGroups  int               `json:"rotationGroups"`
	ActiveCampaigns int               `json:"activeCampaigns"`
	SendsToday      int               `json:"sendsToday"`
}

// Usage reports the team's consumption against every plan cap at once.
func (s *PlanService) Usage(ctx context.Context, teamID string) (*PlanUsage, error) {
	team := &models.Team{}
	if err := s.db.WithContext(ctx).First(team, "id = ?", teamID).Error; err != nil {
		return nil, fmt.Errorf("team not found: %w", err)
	}

	usage := &PlanUsage{
		Tier:   team.PlanTier,
		Limits: models.LimitsFor(team.PlanTier),
	}

	var accounts int64
	if err := s.db.WithContext(ctx).Model(&models.SMTPAccount{}).
		Where("team_id = ?", teamID).Count(&accounts).Error; err != nil {
		return nil, err
	}
	usage.SMTPAccounts = int(accounts)

	var groups []string
	if err := s.db.WithContext(ctx).Model(&models.SMTPAccount{}).
		Where("team_id = ? AND rotation_group <> ''", teamID).
		Distinct("rotation_group").Pluck("rotation_group", &groups).Error; err != nil {
		return nil, err
	}
	usage.RotationGroups = len(groups)

	var campaigns int64
	if err := s.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("team_id = ? AND status IN ?", teamID, []models.CampaignStatus{
			models.CampaignStatusActive,
			models.CampaignStatusPaused,
		}).Count(&campaigns).Error; err != nil {
		return nil, err
	}
	usage.ActiveCampaigns = int(campaigns)

	if s.redis != nil {
		if used, err := s.redis.GetDailySends(ctx, teamID); err == nil {
			usage.SendsToday = used
		}
	}
	return usage, nil
}

// ConsumeDailySend counts a send against the team's daily allowance and
// reports whether the team is still within it. The counter lives in redis
// under a per-day key, so the window resets at midnight UTC.
func (s *PlanService) ConsumeDailySend(ctx context.Context, teamID string) error {
	limits, err := s.limitsFor(ctx, teamID)
	if err != nil {
		return err
	}
	if limits.DailySends == nil {
		return nil
	}
	if s.redis == nil {
		return nil
	}

	used, err := s.redis.GetDailySends(ctx, teamID)
	if err != nil {
		return err
	}
	if !models.WithinLimit(used, limits.DailySends) {
		return fmt.Errorf("daily send limit reached: %d sends allowed", *limits.DailySends)
	}

	_, err = s.redis.IncrementDailySends(ctx, teamID)
	return err
}
