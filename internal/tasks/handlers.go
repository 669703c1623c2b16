package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tern/internal/services"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskHandler handles task processing with improved error handling and logging
type TaskHandler struct {
	pipeline       *services.SendPipeline
	queue          *services.QueueService
	campaigns      *services.CampaignService
	contacts       *services.ContactService
	analytics      *services.AnalyticsService
	deliverability *services.DeliverabilityService
	webhooks       *services.WebhookService
	client         *TaskClient
	logger         *zap.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(
	pipeline *services.SendPipeline,
	queue *services.QueueService,
	campaigns *services.CampaignService,
	contacts *services.ContactService,
	analytics *services.AnalyticsService,
	deliverability *services.DeliverabilityService,
	webhooks *services.WebhookService,
	client *TaskClient,
	logger *zap.Logger,
) *TaskHandler {
	return &TaskHandler{
		pipeline:       pipeline,
		queue:          queue,
		campaigns:      campaigns,
		contacts:       contacts,
		analytics:      analytics,
		deliverability: deliverability,
		webhooks:       webhooks,
		client:         client,
		logger:         logger,
	}
}

// HandleCampaignProcess runs one send pass for a campaign.
func (h *TaskHandler) HandleCampaignProcess(ctx context.Context, t *asynq.Task) error {
	var task CampaignTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal campaign task: %w", asynq.SkipRetry)
	}

	h.logger.Info("processing campaign task",
		zap.String("campaign_id", task.CampaignID),
		zap.Int("batch_size", task.BatchSize),
	)

	result, err := h.pipeline.ProcessCampaign(ctx, task.CampaignID, task.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to process campaign %s: %w", task.CampaignID, err)
	}

	h.logger.Info("campaign pass finished",
		zap.String("campaign_id", task.CampaignID),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return nil
}

// HandleCampaignSchedule scans for due campaigns and enqueues a send pass
// for each. Runs every minute; duplicate enqueues collapse on the task's
// uniqueness lock.
func (h *TaskHandler) HandleCampaignSchedule(ctx context.Context, t *asynq.Task) error {
	due, err := h.campaigns.DueCampaigns(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to list due campaigns: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	h.logger.Info("scheduling due campaigns", zap.Int("count", len(due)))

	for _, campaign := range due {
		if err := h.client.EnqueueCampaignTask(ctx, campaign.ID, campaign.BatchSize, time.Time{}); err != nil {
			h.logger.Error("failed to enqueue due campaign",
				zap.String("campaign_id", campaign.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// HandleMessageQueue drains a batch of queued and retried messages.
func (h *TaskHandler) HandleMessageQueue(ctx context.Context, t *asynq.Task) error {
	var task QueueDrainTask
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &task); err != nil {
			return fmt.Errorf("failed to unmarshal queue drain task: %w", asynq.SkipRetry)
		}
	}

	result, err := h.queue.RunMessageQueue(ctx, task.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to run message queue: %w", err)
	}

	if result.Processed > 0 {
		h.logger.Info("message queue drained",
			zap.Int("processed", result.Processed),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed),
		)
	}
	return nil
}

// HandleMessageRetry runs a single scheduled retry attempt. Retry
// bookkeeping lives in the queue service, so an error here means the
// message was in a state the scheduler should never have enqueued.
func (h *TaskHandler) HandleMessageRetry(ctx context.Context, t *asynq.Task) error {
	var task MessageTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal message task: %w", asynq.SkipRetry)
	}

	h.logger.Info("processing message retry",
		zap.String("message_id", task.MessageID),
		zap.Int("attempt", task.AttemptNum),
	)

	sent, err := h.queue.ExecuteMessageSend(ctx, task.MessageID)
	if err != nil {
		return fmt.Errorf("failed to execute message send: %w", err)
	}
	if sent {
		h.logger.Info("message sent on retry",
			zap.String("message_id", task.MessageID),
			zap.Int("attempt", task.AttemptNum),
		)
	}
	return nil
}

// HandleContactImport processes a contact import task
func (h *TaskHandler) HandleContactImport(ctx context.Context, t *asynq.Task) error {
	var task ContactImportTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal contact import task: %w", asynq.SkipRetry)
	}

	h.logger.Info("processing contact import task",
		zap.String("import_id", task.ImportID),
	)

	if err := h.contacts.ProcessImport(ctx, task.ImportID); err != nil {
		return fmt.Errorf("failed to process import %s: %w", task.ImportID, err)
	}
	return nil
}

// HandleWebhookDelivery processes a webhook delivery task. The service
// returns an error only while the delivery still has attempts left, which
// lets asynq apply its backoff between tries.
func (h *TaskHandler) HandleWebhookDelivery(ctx context.Context, t *asynq.Task) error {
	var task WebhookDeliveryTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal webhook task: %w", asynq.SkipRetry)
	}

	h.logger.Info("processing webhook delivery",
		zap.String("delivery_id", task.DeliveryID),
	)

	return h.webhooks.Deliver(ctx, task.DeliveryID)
}

// HandleDomainCheck re-runs deliverability checks. With a check ID it
// re-checks that one domain; without one it sweeps the stalest checks.
func (h *TaskHandler) HandleDomainCheck(ctx context.Context, t *asynq.Task) error {
	var task DomainCheckTask
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &task); err != nil {
			return fmt.Errorf("failed to unmarshal domain check task: %w", asynq.SkipRetry)
		}
	}

	if task.DomainCheckID != "" {
		if _, err := h.deliverability.RecheckDomain(ctx, task.DomainCheckID); err != nil {
			return fmt.Errorf("failed to re-check domain %s: %w", task.DomainCheckID, err)
		}
		return nil
	}

	stale, err := h.deliverability.StaleDomainChecks(ctx, 24*time.Hour, 200)
	if err != nil {
		return fmt.Errorf("failed to list stale domain checks: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	h.logger.Info("re-checking stale domains", zap.Int("count", len(stale)))

	for _, check := range stale {
		if _, err := h.deliverability.RecheckDomain(ctx, check.ID); err != nil {
			h.logger.Error("domain re-check failed",
				zap.String("check_id", check.ID),
				zap.String("domain", check.Domain),
				zap.Error(err),
			)
		}
	}
	return nil
}

// HandleStatsCompute recomputes aggregate stats, for one team or all of
// them when the payload names none.
func (h *TaskHandler) HandleStatsCompute(ctx context.Context, t *asynq.Task) error {
	var task StatsComputeTask
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &task); err != nil {
			return fmt.Errorf("failed to unmarshal stats task: %w", asynq.SkipRetry)
		}
	}

	if task.TeamID != "" {
		if _, err := h.analytics.RecomputeTeamStats(ctx, task.TeamID); err != nil {
			return fmt.Errorf("failed to recompute stats for team %s: %w", task.TeamID, err)
		}
		return nil
	}

	if err := h.analytics.RecomputeAll(ctx); err != nil {
		return fmt.Errorf("failed to recompute stats: %w", err)
	}
	return nil
}
