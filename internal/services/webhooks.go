package services

import (
	"context"
	"encoding/json"
	"fmt"
	"tern/internal/events"
	"tern/internal/models"
	"tern/internal/monitoring"
	"tern/internal/utils"
	"tern/internal/utils/logger"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var webhookLog = logger.New("WEBHOOKS")

// WebhookDeliveryEnqueuer pushes a pending delivery onto the task queue.
type WebhookDeliveryEnqueuer interface {
	EnqueueWebhookDeliveryTask(ctx context.Context, deliveryID string) error
}

// webhookMaxAttempts caps delivery attempts per row.
const webhookMaxAttempts = 5

// WebhookService fans engagement events out to team-registered endpoints.
// Each matching webhook gets a delivery row; the task queue drives the
// actual POSTs so a slow endpoint never blocks the event path.
type WebhookService struct {
	db       *gorm.DB
	client   *utils.WebhookClient
	enqueuer WebhookDeliveryEnqueuer
	log      *logger.Logger
}

func NewWebhookService(db *gorm.DB, enqueuer WebhookDeliveryEnqueuer) *WebhookService {
	return &WebhookService{
		db:       db,
		client:   utils.NewWebhookClient(15 * time.Second),
		enqueuer: enqueuer,
		log:      webhookLog,
	}
}

// Wire subscribes the fan-out to the engagement and alert events.
func (s *WebhookService) Wire() {
	forward := func(event string, teamID string, payload interface{}) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.FanOut(ctx, teamID, event, payload); err != nil {
			s.log.Error("fan-out of %s failed: %v", event, err)
		}
	}

	events.On("message_open.created", func(data interface{}) {
		if open, ok := data.(*models.MessageOpen); ok {
			forward("message.opened", open.TeamID, open)
		}
	})
	events.On("message_click.created", func(data interface{}) {
		if click, ok := data.(*models.MessageClick); ok {
			forward("message.clicked", click.TeamID, click)
		}
	})
	events.On("alert.created", func(data interface{}) {
		if alert, ok := data.(*models.Alert); ok {
			forward("alert.created", alert.TeamID, alert)
		}
	})
	events.On("smtp_account.disabled", func(data interface{}) {
		if account, ok := data.(*models.SMTPAccount); ok {
			forward("smtp_account.disabled", account.TeamID, account)
		}
	})
}

// FanOut creates one pending delivery per subscribed webhook and hands
// them to the task queue.
func (s *WebhookService) FanOut(ctx context.Context, teamID, event string, payload interface{}) error {
	var webhooks []models.Webhook
	if err := s.db.WithContext(ctx).
		Where("team_id = ? AND is_active = ?", teamID, true).
		Find(&webhooks).Error; err != nil {
		return err
	}

	body, err := json.Marshal(map[string]interface{}{
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	for i := range webhooks {
		webhook := &webhooks[i]
		if !webhook.Subscribed(event) {
			continue
		}

		delivery := &models.WebhookDelivery{
			WebhookID: webhook.ID,
			Event:     event,
			Payload:   datatypes.JSON(body),
		}
		if err := s.db.WithContext(ctx).Create(delivery).Error; err != nil {
			s.log.Error("failed to create delivery for webhook %s: %v", webhook.ID, err)
			continue
		}

		if s.enqueuer != nil {
			if err := s.enqueuer.EnqueueWebhookDeliveryTask(ctx, delivery.ID); err != nil {
				s.log.Error("failed to enqueue delivery %s: %v", delivery.ID, err)
			}
		}
	}

	return nil
}

// Deliver executes one delivery attempt. Non-2xx responses and transport
// errors count as failures; the row closes after webhookMaxAttempts.
func (s *WebhookService) Deliver(ctx context.Context, deliveryID string) error {
	delivery := &models.WebhookDelivery{}
	if err := s.db.WithContext(ctx).First(delivery, "id = ?", deliveryID).Error; err != nil {
		return fmt.Errorf("delivery not found: %w", err)
	}
	if delivery.Status == models.DeliveryStatusDelivered {
		return nil
	}

	webhook := &models.Webhook{}
	if err := s.db.WithContext(ctx).First(webhook, "id = ?", delivery.WebhookID).Error; err != nil {
		return fmt.Errorf("webhook not found for delivery %s: %w", delivery.ID, err)
	}
	if !webhook.IsActive {
		s.log.Warn("webhook %s inactive, dropping delivery %s", webhook.ID, delivery.ID)
		return s.db.WithContext(ctx).Model(delivery).Updates(map[string]interface{}{
			"status": models.DeliveryStatusFailed,
			"error":  "webhook disabled",
		}).Error
	}

	delivery.Attempts++

	var payload interface{}
	if err := json.Unmarshal(delivery.Payload, &payload); err != nil {
		payload = string(delivery.Payload)
	}

	code, err := s.client.PostJSON(ctx, webhook.URL, payload, webhook.Secret)
	if err != nil {
		monitoring.WebhookDeliveryFailure.Inc()

		status := models.DeliveryStatusPending
		if delivery.Attempts >= webhookMaxAttempts {
			status = models.DeliveryStatusFailed
		}
		if dbErr := s.db.WithContext(ctx).Model(delivery).Updates(map[string]interface{}{
			"status":        status,
			"attempts":      delivery.Attempts,
			"response_code": code,
			"error":         err.Error(),
		}).Error; dbErr != nil {
			return dbErr
		}

		if status == models.DeliveryStatusFailed {
			s.log.Error("delivery %s abandoned after %d attempts", delivery.ID, delivery.Attempts)
			return nil
		}
		// Returning the error lets the task queue retry with its backoff.
		return fmt.Errorf("webhook delivery %s attempt %d failed: %w", delivery.ID, delivery.Attempts, err)
	}

	monitoring.WebhookDeliverySuccess.Inc()
	now := time.Now()
	if err := s.db.WithContext(ctx).Model(delivery).Updates(map[string]interface{}{
		"status":        models.DeliveryStatusDelivered,
		"attempts":      delivery.Attempts,
		"response_code": code,
		"error":         "",
		"delivered_at":  now,
	}).Error; err != nil {
		return err
	}

	s.log.Debug("delivery %s acknowledged with %d", delivery.ID, code)
	return nil
}
