package services

import (
	"context"
	"fmt"
	"tern/internal/models"
	"tern/internal/utils/logger"
	"time"

	"gorm.io/gorm"
)

var queueLog = logger.New("QUEUE")

// MessageRetryEnqueuer is the slice of the task client the queue service
// uses to push a failed message back with a delay.
type MessageRetryEnqueuer interface {
	EnqueueMessageRetryTask(ctx context.Context, messageID string, attempt int, delay time.Duration) error
}

// retryBackoff is the delay ladder between attempts. A failed send comes
// back after a minute, then five, then fifteen before the cap closes it.
var retryBackoff = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}

func backoffForAttempt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(retryBackoff) {
		attempt = len(retryBackoff)
	}
	return retryBackoff[attempt-1]
}

// QueueResult tallies one drain pass.
type QueueResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// QueueService drains queued messages and owns the message-level retry
// ladder. The enqueuer is optional; without it the statuses alone drive
// retries and the periodic drain picks RETRIED messages back up.
type QueueService struct {
	db       *gorm.DB
	pipeline *SendPipeline
	enqueuer MessageRetryEnqueuer
	log      *logger.Logger
}

func NewQueueService(db *gorm.DB, pipeline *SendPipeline, enqueuer MessageRetryEnqueuer) *QueueService {
	return &QueueService{
		db:       db,
		pipeline: pipeline,
		enqueuer: enqueuer,
		log:      queueLog,
	}
}

// ExecuteMessageSend runs one delivery attempt for a queued message.
// Returns whether the attempt fully succeeded. Messages in any other
// status are an error: the caller enqueued something it should not have.
func (s *QueueService) ExecuteMessageSend(ctx context.Context, messageID string) (bool, error) {
	message, err := models.GetMessageByID(s.db.WithContext(ctx), messageID)
	if err != nil {
		return false, fmt.Errorf("message not found: %w", err)
	}

	if message.Status != models.MessageStatusQueued && message.Status != models.MessageStatusRetried {
		return false, fmt.Errorf("message %s is not ready for sending, status: %s", message.ID, message.Status)
	}

	campaign := &models.Campaign{}
	if err := s.db.WithContext(ctx).First(campaign, "id = ?", message.CampaignID).Error; err != nil {
		return false, fmt.Errorf("campaign not found for message %s: %w", message.ID, err)
	}

	if campaign.Status != models.CampaignStatusActive {
		s.log.Warn("message %s skipped, campaign %s is %s", message.ID, campaign.ID, campaign.Status)
		return false, nil
	}
	if !campaign.IsDue(time.Now()) {
		s.log.Info("message %s skipped, campaign %s not due yet", message.ID, campaign.ID)
		return false, nil
	}

	// A retry pass re-attempts the recipients the previous pass failed.
	if message.Status == models.MessageStatusRetried {
		if err := s.db.WithContext(ctx).Model(&models.MessageRecipient{}).
			Where("message_id = ? AND status = ?", message.ID, models.RecipientStatusFailed).
			Update("status", models.RecipientStatusPending).Error; err != nil {
			return false, err
		}
	}

	recipients, err := models.PendingRecipients(s.db.WithContext(ctx), message.ID, 0)
	if err != nil {
		return false, err
	}

	result := s.pipeline.SendBatch(ctx, campaign, message, recipients)

	if result.Failed == 0 {
		now := time.Now()
		if err := s.db.WithContext(ctx).Model(message).Updates(map[string]interface{}{
			"status":  models.MessageStatusSent,
			"sent_at": now,
			"error":   "",
		}).Error; err != nil {
			return false, err
		}
		s.log.Success("Message %s sent to %d recipients", message.ID, result.Sent)
		return true, nil
	}

	return false, s.recordAttemptFailure(ctx, campaign, message, result)
}

// recordAttemptFailure walks the retry ladder. The cap is checked before
// the increment, so the third failure is the last recorded attempt.
func (s *QueueService) recordAttemptFailure(ctx context.Context, campaign *models.Campaign, message *models.Message, result *SendResult) error {
	if !message.CanRetry() {
		if err := s.db.WithContext(ctx).Model(message).Updates(map[string]interface{}{
			"status": models.MessageStatusFailed,
			"error":  fmt.Sprintf("gave up after %d attempts", message.Retries),
		}).Error; err != nil {
			return err
		}

		alert := &models.Alert{
			Type:       models.AlertTypeThresholdExceeded,
			Message:    fmt.Sprintf("Message %s exhausted its %d retry attempts", message.ID, models.MessageMaxRetries),
			TeamID:     message.TeamID,
			CampaignID: &campaign.ID,
		}
		if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
			s.log.Error("failed to create retry alert: %v", err)
		}

		s.log.Error("message %s failed permanently after %d attempts", message.ID, message.Retries)
		return nil
	}

	message.Retries++
	if err := s.db.WithContext(ctx).Model(message).Updates(map[string]interface{}{
		"status":  models.MessageStatusRetried,
		"retries": message.Retries,
		"error":   fmt.Sprintf("%d recipients failed on attempt %d", result.Failed, message.Retries),
	}).Error; err != nil {
		return err
	}

	if s.enqueuer != nil {
		delay := backoffForAttempt(message.Retries)
		if err := s.enqueuer.EnqueueMessageRetryTask(ctx, message.ID, message.Retries, delay); err != nil {
			s.log.Error("failed to enqueue retry for message %s: %v", message.ID, err)
		} else {
			s.log.Info("Message %s retry %d scheduled in %s ⌛", message.ID, message.Retries, delay)
		}
	}

	return nil
}

// RunMessageQueue drains up to batchSize ready messages, oldest first.
// Only messages of active, due campaigns are picked up.
func (s *QueueService) RunMessageQueue(ctx context.Context, batchSize int) (*QueueResult, error) {
	if batchSize <= 0 {
		batchSize = 20
	}

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Joins("JOIN campaigns ON campaigns.id = messages.campaign_id").
		Where("messages.status IN ?", []models.MessageStatus{
			models.MessageStatusQueued,
			models.MessageStatusRetried,
		}).
		Where("campaigns.status = ?", models.CampaignStatusActive).
		Where("campaigns.scheduled_for IS NULL OR campaigns.scheduled_for <= ?", time.Now()).
		Order("messages.created_at asc").
		Limit(batchSize).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	result := &QueueResult{}
	for i := range messages {
		if ctx.Err() != nil {
			break
		}
		result.Processed++
		ok, err := s.ExecuteMessageSend(ctx, messages[i].ID)
		if err != nil {
			s.log.Error("queue pass failed for message %s: %v", messages[i].ID, err)
			result.Failed++
			continue
		}
		if ok {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	if result.Processed > 0 {
		s.log.Info("Queue drain: processed %d, sent %d, failed %d", result.Processed, result.Sent, result.Failed)
	}
	return result, nil
}
