package tasks

import "time"

// Task Types
const (
	// Campaign related tasks
	TaskTypeCampaignProcess  = "campaign:process"
	TaskTypeCampaignSchedule = "campaign:schedule"

	// Message queue related tasks
	TaskTypeMessageQueue = "message:queue"
	TaskTypeMessageRetry = "message:retry"

	// Contact related tasks
	TaskTypeContactImport = "contact:import"

	// Webhook related tasks
	TaskTypeWebhookDelivery = "webhook:delivery"

	// Deliverability related tasks
	TaskTypeDomainCheck = "domain:check"

	// Analytics related tasks
	TaskTypeStatsCompute = "stats:compute"
)

// Task Queues
const (
	QueueCritical = "critical" // For time-sensitive tasks like campaign sends
	QueueDefault  = "default"  // For regular tasks
	QueueLow      = "low"      // For background tasks like re-checks
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
	TimeoutLong   = 30 * time.Minute
)

// Task Retry Settings
const (
	RetryMax     = 5
	RetryDefault = 3
	RetryMin     = 1
)

// Task Payloads
type CampaignTask struct {
	CampaignID  string    `json:"campaign_id"`
	BatchSize   int       `json:"batch_size"`
	ScheduledAt time.Time `json:"scheduled_at,omitempty"`
}

type MessageTask struct {
	MessageID  string `json:"message_id"`
	AttemptNum int    `json:"attempt_num"`
}

type QueueDrainTask struct {
	BatchSize int `json:"batch_size"`
}

type ContactImportTask struct {
	ImportID string `json:"import_id"`
}

type WebhookDeliveryTask struct {
	DeliveryID string `json:"delivery_id"`
}

type DomainCheckTask struct {
	DomainCheckID string `json:"domain_check_id"`
}

type StatsComputeTask struct {
	// TeamID empty means recompute every team.
	TeamID string `json:"team_id,omitempty"`
}
