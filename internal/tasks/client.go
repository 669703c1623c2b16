package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tern/internal/utils/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	limiter "tern/internal/tasks/rate"
)

// TaskClient handles task enqueuing with context support. Its enqueue
// methods take primitive payload parts so callers can depend on a narrow
// interface instead of this package.
type TaskClient struct {
	client          *asynq.Client
	logger          *logger.Logger
	redisClient     *redis.Client
	campaignLimiter *limiter.QueueRateLimiter
}

func (c *TaskClient) GetClient() *asynq.Client {
	return c.client
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(redisAddr, username, password string, db int) *TaskClient {
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Username: username,
		Password: password,
		DB:       db,
	}

	redisClient := redis.NewClient(
		&redis.Options{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
	)

	return &TaskClient{
		client:      asynq.NewClient(redisOpt),
		redisClient: redisClient,
		campaignLimiter: limiter.NewQueueRateLimiter(redisClient, limiter.QueueConfig{
			Name: "campaign:process",
			RateLimit: limiter.RateLimit{
				Window:  time.Minute,
				MaxJobs: 6,
			},
		}),
		logger: logger.New("TASKS"),
	}
}

// Close closes the underlying asynq client
func (c *TaskClient) Close() error {
	return c.client.Close()
}

// EnqueueCampaignTask enqueues one processing pass for a campaign. A zero
// `at` means now; a future one becomes the task's process time, which is
// also how recurring campaigns get their next run. Enqueues are rate
// limited per campaign with a sliding window; a denied enqueue is delayed
// by half a window instead of dropped.
func (c *TaskClient) EnqueueCampaignTask(ctx context.Context, campaignID string, batchSize int, at time.Time) error {
	task := CampaignTask{
		CampaignID:  campaignID,
		BatchSize:   batchSize,
		ScheduledAt: at,
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign task: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(QueueCritical),
		asynq.Timeout(TimeoutLong),
		asynq.MaxRetry(RetryDefault),
		asynq.Unique(time.Hour),
	}

	switch {
	case !at.IsZero() && at.After(time.Now()):
		opts = append(opts, asynq.ProcessAt(at))
		c.logger.Info("⏰ Scheduling campaign [%s] at: %s", campaignID, at.Format(time.RFC3339))

	default:
		allowed, lerr := c.campaignLimiter.Allow(ctx, campaignID)
		if lerr != nil {
			return fmt.Errorf("rate limiter error: %w", lerr)
		}
		if !allowed {
			delay := c.campaignLimiter.RetryIn()
			opts = append(opts, asynq.ProcessIn(delay))
			c.logger.Warn("⌛ Campaign [%s] enqueue rate limited, delaying by %v", campaignID, delay)
		} else {
			c.logger.Info("🚀 Enqueueing campaign [%s] for immediate processing", campaignID)
		}
	}

	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeCampaignProcess, payload), opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			c.logger.Warn("campaign task already scheduled for [%s]", campaignID)
			return nil
		}
		return fmt.Errorf("failed to enqueue campaign task: %w", err)
	}

	c.logger.Success("Enqueued campaign task [ID: %s] [Queue: %s]", info.ID, info.Queue)
	return nil
}

// EnqueueMessageRetryTask schedules another queue pass for a message
// after a backoff delay.
func (c *TaskClient) EnqueueMessageRetryTask(ctx context.Context, messageID string, attempt int, delay time.Duration) error {
	payload, err := json.Marshal(MessageTask{MessageID: messageID, AttemptNum: attempt})
	if err != nil {
		return fmt.Errorf("failed to marshal message task: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.Timeout(TimeoutMedium),
		asynq.MaxRetry(RetryMin),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeMessageRetry, payload), opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue message retry task: %w", err)
	}

	c.logger.Info("Enqueued message retry [%s] in queue %s for message %s (attempt %d, delay %v)",
		info.ID, info.Queue, messageID, attempt, delay)
	return nil
}

// EnqueueWebhookDeliveryTask enqueues a webhook delivery attempt.
func (c *TaskClient) EnqueueWebhookDeliveryTask(ctx context.Context, deliveryID string) error {
	payload, err := json.Marshal(WebhookDeliveryTask{DeliveryID: deliveryID})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypeWebhookDelivery, payload),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(RetryDefault),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue webhook task: %w", err)
	}

	c.logger.Info("Enqueued webhook delivery task [%s] in queue %s for delivery %s",
		info.ID, info.Queue, deliveryID)
	return nil
}

// EnqueueContactImportTask enqueues a contact import task
func (c *TaskClient) EnqueueContactImportTask(ctx context.Context, importID string) error {
	payload, err := json.Marshal(ContactImportTask{ImportID: importID})
	if err != nil {
		return fmt.Errorf("failed to marshal contact import task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypeContactImport, payload),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(RetryDefault),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue contact import task: %w", err)
	}

	c.logger.Info("Enqueued contact import task [%s] in queue %s for import %s",
		info.ID, info.Queue, importID)
	return nil
}

// EnqueueDomainCheckTask enqueues a deliverability re-check.
func (c *TaskClient) EnqueueDomainCheckTask(ctx context.Context, domainCheckID string) error {
	payload, err := json.Marshal(DomainCheckTask{DomainCheckID: domainCheckID})
	if err != nil {
		return fmt.Errorf("failed to marshal domain check task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypeDomainCheck, payload),
		asynq.Queue(QueueLow),
		asynq.MaxRetry(RetryMin),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue domain check task: %w", err)
	}

	c.logger.Info("Enqueued domain check task [%s] in queue %s for check %s",
		info.ID, info.Queue, domainCheckID)
	return nil
}
