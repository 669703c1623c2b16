package services

import (
	"context"
	"fmt"
	"tern/internal/config"
	"tern/internal/events"
	"tern/internal/models"
	"tern/internal/utils"
	"tern/internal/utils/logger"
	"time"

	"gorm.io/gorm"
)

var alertLog = logger.New("ALERTS")

// AlertService surfaces operator-facing incidents and forwards them to
// the ops webhook when one is configured.
type AlertService struct {
	db         *gorm.DB
	client     *utils.WebhookClient
	webhookURL string
	log        *logger.Logger
}

func NewAlertService(db *gorm.DB, cfg *config.Config) *AlertService {
	return &AlertService{
		db:         db,
		client:     utils.NewWebhookClient(10 * time.Second),
		webhookURL: cfg.Monitor.AlertWebhookURL,
		log:        alertLog,
	}
}

// Wire forwards freshly created alerts to the ops webhook.
func (s *AlertService) Wire() {
	events.On("alert.created", func(data interface{}) {
		alert, ok := data.(*models.Alert)
		if !ok {
			return
		}
		s.log.Warn("alert [%s] %s", alert.Type, alert.Message)

		if s.webhookURL == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := s.client.PostJSON(ctx, s.webhookURL, alert, ""); err != nil {
			s.log.Error("failed to notify ops webhook: %v", err)
		}
	})
}

// List returns a team's alerts, optionally only the open ones.
func (s *AlertService) List(ctx context.Context, teamID string, unresolvedOnly bool) ([]models.Alert, error) {
	var alerts []models.Alert
	q := s.db.WithContext(ctx).Where("team_id = ?", teamID).Order("created_at desc")
	if unresolvedOnly {
		q = q.Where("resolved = ?", false)
	}
	if err := q.Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// Resolve closes an alert.
func (s *AlertService) Resolve(ctx context.Context, teamID, alertID string) (*models.Alert, error) {
	alert := &models.Alert{}
	if err := s.db.WithContext(ctx).Where("id = ? AND team_id = ?", alertID, teamID).First(alert).Error; err != nil {
		return nil, fmt.Errorf("alert not found: %w", err)
	}
	if err := alert.Resolve(s.db.WithContext(ctx)); err != nil {
		return nil, s.log.Error("failed to resolve alert %s: %v", alertID, err)
	}
	return alert, nil
}
