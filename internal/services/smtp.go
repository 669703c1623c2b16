package services

import (
	"context"
	"fmt"
	"math/rand"
	"tern/internal/config"
	"tern/internal/models"
	"tern/internal/utils"
	"tern/internal/utils/logger"
	"time"

	"gorm.io/gorm"
)

var smtpLog = logger.New("SMTP")

// SMTPService owns account rotation and the failure breaker. Sending goes
// through GetForSending so every caller honors the same selection rules.
type SMTPService struct {
	db        *gorm.DB
	client    *utils.SMTPClient
	threshold int
	log       *logger.Logger
}

func NewSMTPService(db *gorm.DB, cfg *config.Config) *SMTPService {
	return &SMTPService{
		db:        db,
		client:    utils.NewSMTPClient(time.Duration(cfg.SMTP.ConnectTimeoutSeconds)*time.Second, cfg.SMTP.DefaultMaxSendRate),
		threshold: cfg.SMTP.FailureThreshold,
		log:       smtpLog,
	}
}

// Client exposes the underlying SMTP client for the send pipeline.
func (s *SMTPService) Client() *utils.SMTPClient {
	return s.client
}

// SelectForSending picks one account at random from the candidates.
// Random choice spreads volume across accounts without tracking state.
func SelectForSending(accounts []models.SMTPAccount) (*models.SMTPAccount, error) {
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no active smtp accounts available")
	}
	return &accounts[rand.Intn(len(accounts))], nil
}

// GetForSending resolves the account a send should use:
// 1. a pinned account must belong to the team and be active, no fallback
// 2. otherwise rotate at random among the team's active accounts,
//    narrowed to the rotation group when one is set
func (s *SMTPService) GetForSending(ctx context.Context, teamID string, accountID *string, rotationGroup string) (*models.SMTPAccount, error) {
	tx := s.db.WithContext(ctx)

	if accountID != nil && *accountID != "" {
		account := &models.SMTPAccount{}
		if err := tx.Where("id = ? AND team_id = ?", *accountID, teamID).First(account).Error; err != nil {
			return nil, fmt.Errorf("smtp account %s not found: %w", *accountID, err)
		}
		if !account.IsActive {
			return nil, fmt.Errorf("smtp account %s is not active", account.ID)
		}
		return account, nil
	}

	accounts, err := models.ActiveSMTPAccounts(tx, teamID, rotationGroup)
	if err != nil {
		return nil, err
	}
	return SelectForSending(accounts)
}

// RecordFailure increments the account's failure counter and disables the
// account once the configured threshold is reached. Returns whether this
// failure tripped the breaker.
func (s *SMTPService) RecordFailure(ctx context.Context, account *models.SMTPAccount, sendErr error) (bool, error) {
	tripped, err := account.MarkFailure(s.db.WithContext(ctx), s.threshold, sendErr)
	if err != nil {
		return false, s.log.Error("failed to record smtp failure for %s: %v", account.ID, err)
	}

	if tripped {
		s.log.Warn("smtp account %s disabled after %d consecutive failures ❌", account.ID, account.FailureCount)
		alert := &models.Alert{
			Type:          models.AlertTypeSMTPDisabled,
			Message:       fmt.Sprintf("SMTP account %s (%s) was disabled after %d consecutive failures", account.Username, account.Host, account.FailureCount),
			TeamID:        account.TeamID,
			SMTPAccountID: &account.ID,
		}
		if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
			s.log.Error("failed to create smtp disabled alert: %v", err)
		}
	}

	return tripped, nil
}

// RecordSuccess clears the failure counter after a delivered message.
func (s *SMTPService) RecordSuccess(ctx context.Context, account *models.SMTPAccount) error {
	if err := account.ResetFailures(s.db.WithContext(ctx)); err != nil {
		return s.log.Error("failed to reset smtp failures for %s: %v", account.ID, err)
	}
	return nil
}

// Create stores a new account after verifying the connection and the
// team's plan allowance.
func (s *SMTPService) Create(ctx context.Context, account *models.SMTPAccount, plans *PlanService) error {
	if plans != nil {
		if err := plans.CanCreateSMTPAccount(ctx, account.TeamID); err != nil {
			return err
		}
		if account.RotationGroup != "" {
			if err := plans.CanCreateRotationGroup(ctx, account.TeamID, account.RotationGroup); err != nil {
				return err
			}
		}
	}

	if err := s.client.TestConnection(ctx, account); err != nil {
		return fmt.Errorf("smtp connection test failed: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return s.log.Error("failed to create smtp account: %v", err)
	}

	s.log.Success("SMTP account %s created for team %s", account.Username, account.TeamID)
	return nil
}

// Test verifies credentials for an existing account and records the result.
func (s *SMTPService) Test(ctx context.Context, teamID, accountID string) error {
	account := &models.SMTPAccount{}
	if err := s.db.WithContext(ctx).Where("id = ? AND team_id = ?", accountID, teamID).First(account).Error; err != nil {
		return fmt.Errorf("smtp account not found: %w", err)
	}

	if err := s.client.TestConnection(ctx, account); err != nil {
		if _, recErr := s.RecordFailure(ctx, account, err); recErr != nil {
			s.log.Error("failed to record test failure: %v", recErr)
		}
		return fmt.Errorf("smtp connection test failed: %w", err)
	}

	return s.RecordSuccess(ctx, account)
}

// ResetBreaker re-enables a disabled account and clears its counters.
// Used after an operator fixes the underlying credential or host issue.
func (s *SMTPService) ResetBreaker(ctx context.Context, teamID, accountID string) error {
	account := &models.SMTPAccount{}
	if err := s.db.WithContext(ctx).Where("id = ? AND team_id = ?", accountID, teamID).First(account).Error; err != nil {
		return fmt.Errorf("smtp account not found: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(account).Updates(map[string]interface{}{
		"is_active":     true,
		"failure_count": 0,
		"last_error":    "",
	}).Error; err != nil {
		return s.log.Error("failed to reset smtp breaker for %s: %v", accountID, err)
	}

	s.log.Success("SMTP account %s re-enabled", accountID)
	return nil
}
